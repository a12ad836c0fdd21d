package mail

import "time"

type NewLeadEmailData struct {
	LeadID     string
	Name       string
	Phone      string
	Email      string
	FormType   string
	LeadSource string
	Message    string
	OccurredAt time.Time
}

type RefreshFailureEmailData struct {
	Reason     string
	OccurredAt time.Time
}

const newLeadTemplate = `A new lead reached the website.

Name:        {{if .Name}}{{.Name}}{{else}}(not given){{end}}
Phone:       +{{.Phone}}
Email:       {{if .Email}}{{.Email}}{{else}}(not given){{end}}
Form:        {{.FormType}}
Lead source: {{.LeadSource}}
Zoho lead:   {{.LeadID}}
{{if .Message}}
Message:
{{.Message}}
{{end}}
Received {{.OccurredAt.Format "02 Jan 2006 15:04 MST"}}
`

const refreshFailureTemplate = `The Zoho CRM integration can no longer refresh its access token.

Reason: {{.Reason}}
Detected: {{.OccurredAt.Format "02 Jan 2006 15:04 MST"}}

Website leads are being rejected until the integration is re-authorized.
Generate a new authorization code in the Zoho API console and run:

    zoho-init -code <code>

or POST it to /admin/zoho/init.
`
