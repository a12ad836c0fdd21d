package usecase

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

const leadSourcePrefix = "Website"

var defaultLeadSources = map[string]string{
	"contact_us":       "Website - Contact Us",
	"pdf_download":     "Website - Brochure Download",
	"site_visit":       "Website - Site Visit",
	"callback_request": "Website - Callback Request",
	"chatbot":          "Website - Chatbot",
	"newsletter":       "Website - Newsletter",
}

// LeadSources maps a form type to the Lead_Source label shown in Zoho.
type LeadSources struct {
	labels map[string]string
}

type leadSourcesFile struct {
	LeadSources map[string]string `yaml:"lead_sources"`
}

func DefaultLeadSources() *LeadSources {
	labels := make(map[string]string, len(defaultLeadSources))
	for k, v := range defaultLeadSources {
		labels[k] = v
	}
	return &LeadSources{labels: labels}
}

// LoadLeadSources merges the YAML file at path over the defaults. An empty
// path yields the defaults.
func LoadLeadSources(path string) (*LeadSources, error) {
	sources := DefaultLeadSources()
	if path == "" {
		return sources, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lead sources %s: %w", path, err)
	}

	var file leadSourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing lead sources %s: %w", path, err)
	}

	for formType, label := range file.LeadSources {
		key := normalizeFormType(formType)
		if key == "" || strings.TrimSpace(label) == "" {
			continue
		}
		sources.labels[key] = strings.TrimSpace(label)
	}
	return sources, nil
}

func (s *LeadSources) Label(formType string) string {
	key := normalizeFormType(formType)
	if key == "" {
		return leadSourcePrefix
	}
	if label, ok := s.labels[key]; ok {
		return label
	}
	if title := titleWords(key); title != "" {
		return leadSourcePrefix + " - " + title
	}
	return leadSourcePrefix
}

func normalizeFormType(formType string) string {
	key := strings.ToLower(strings.TrimSpace(formType))
	return strings.NewReplacer("-", "_", " ", "_").Replace(key)
}

// titleWords turns "home_loan_enquiry" into "Home Loan Enquiry".
func titleWords(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' })
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// Key returns the normalized form type and whether it has a configured label.
func (s *LeadSources) Key(formType string) (string, bool) {
	key := normalizeFormType(formType)
	_, ok := s.labels[key]
	return key, ok
}
