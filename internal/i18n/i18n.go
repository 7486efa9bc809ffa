package i18n

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

type Translations struct {
	bundle   *i18n.Bundle
	localize *i18n.Localizer
}

func NewTranslations(defaultLang string, localesPath string) (*Translations, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	bundle.MustParseMessageFileBytes([]byte(defaultMessages), "default.en.toml")

	if localesPath == "" {
		localesPath = "locales"
	}

	files, err := filepath.Glob(filepath.Join(localesPath, "active.*.toml"))
	if err != nil {
		return nil, fmt.Errorf("error reading locales: %w", err)
	}

	for _, file := range files {
		if _, err := bundle.LoadMessageFile(file); err != nil {
			return nil, fmt.Errorf("error loading locale file %s: %w", file, err)
		}
	}

	localize := i18n.NewLocalizer(bundle, defaultLang)

	return &Translations{
		bundle:   bundle,
		localize: localize,
	}, nil
}

func (t *Translations) SetLanguage(lang string) error {
	for _, tag := range t.bundle.LanguageTags() {
		if tag.String() == lang {
			t.localize = i18n.NewLocalizer(t.bundle, lang)
			return nil
		}
	}
	return fmt.Errorf("language '%s' not supported", lang)
}

func (t *Translations) GetMessage(messageID string, count int, templateData map[string]interface{}) string {
	localized, err := t.localize.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{
			ID: messageID,
		},
		PluralCount:  count,
		TemplateData: templateData,
	})
	if err != nil {
		return "Translation missing: " + messageID
	}
	return localized
}

var defaultMessages = `
	[app_usage]
	other = "Chat-driven orchestrator that turns dataset requests into Terraform pull requests"

	[serve_command_usage]
	other = "Start the HTTP API for the dataset chatbot"

	[worker_command_usage]
	other = "Pull queued dataset requests and open pull requests"

	[reconcile_command_usage]
	other = "Drain the dead-letter queue and mark stranded requests as failed"

	[serve_port_flag_usage]
	other = "Port for the HTTP API"

	[drain_timeout_flag_usage]
	other = "Seconds to keep draining the subscription before exiting"

	[factory_already_registered]
	other = "Factory already registered: {{.FactoryName}}"

	[chat_welcome]
	other = "I can help you create a BigQuery dataset!"

	[chat_collected_intro]
	other = "Great! I've collected:"

	[chat_need_one_more]
	other = "I still need one more thing: {{.Prompt}}"

	[chat_need_following]
	other = "I still need the following information:"

	[prompt_dataset_name]
	other = "What would you like to name this dataset?"

	[prompt_location]
	other = "Which GCP region should the dataset be located in? (e.g., us-central1, EU, asia-northeast1)"

	[prompt_labels]
	other = "What labels would you like to add? Please provide them in the format 'key:value' (e.g., env:prod, team:marketing)"

	[prompt_service_account]
	other = "Which service account should own this dataset? Please provide the full email address."

	[field_dataset_name]
	other = "dataset name"

	[field_location]
	other = "location"

	[field_labels]
	other = "labels"

	[field_service_account]
	other = "service account"

	[chat_completion]
	other = "Perfect! I have all the information I need.\n\nCreating a pull request for dataset '{{.Dataset}}'...\n\nRequest ID: {{.RequestID}}\n\nI'll update you once the PR is created!"

	[chat_extraction_trouble]
	other = "I'm having trouble understanding. Could you please rephrase that?"

	[chat_dispatch_error]
	other = "Sorry, I encountered an error while creating your request. Please try again."
	`
