package sitegen

import "html/template"

var indexTpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{with .Tenant.Branding.SiteTitle}}{{.}}{{else}}{{.Tenant.Name}}{{end}}</title>
{{with .Tenant.Branding.Tagline}}<meta name="description" content="{{.}}">{{end}}
{{with .Tenant.Branding.OgImageURL}}<meta property="og:image" content="{{.}}">{{end}}
{{with .Tenant.Branding.PrimaryColor}}<meta name="theme-color" content="{{.}}">{{end}}
</head>
<body>
<header>
{{with .Tenant.Branding.LogoURL}}<img src="{{.}}" alt="logo">{{end}}
<h1>{{with .Tenant.Branding.SiteTitle}}{{.}}{{else}}{{.Tenant.Name}}{{end}}</h1>
{{with .Tenant.Branding.Tagline}}<p>{{.}}</p>{{end}}
</header>
<main>
<ul>
{{range .Tenant.Categories}}<li><a href="/categories/{{.Slug}}/">{{.Name}}</a></li>
{{end}}</ul>
</main>
</body>
</html>
`))

var categoryTpl = template.Must(template.New("category").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Category.Name}} | {{.Tenant.Name}}</title>
</head>
<body>
<h1>{{.Category.Name}}</h1>
{{with .Category.Description}}<p>{{.}}</p>{{end}}
<ul>
{{range .Listings}}<li><a href="/listings/{{.Slug}}/">{{.Name}}</a></li>
{{end}}</ul>
<p><a href="/">Home</a></p>
</body>
</html>
`))

var listingTpl = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Listing.Name}} | {{.Tenant.Name}}</title>
</head>
<body>
<h1>{{.Listing.Name}}</h1>
{{with .Listing.Description}}<pre>{{.}}</pre>{{end}}
<dl>
{{with .Listing.Address}}<dt>Address</dt><dd>{{.}}</dd>{{end}}
{{with .Listing.Phone}}<dt>Phone</dt><dd>{{.}}</dd>{{end}}
{{with .Listing.Website}}<dt>Website</dt><dd><a href="{{.}}">{{.}}</a></dd>{{end}}
</dl>
{{if .Listing.Tags}}<ul>
{{range .Listing.Tags}}<li>{{.}}</li>
{{end}}</ul>{{end}}
<p><a href="/">Home</a></p>
</body>
</html>
`))
