// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is structurally valid. Twitch
// credentials are deliberately not required here; commands that talk to
// Helix call ValidateTwitchCredentials before building a client.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid value for %s (rule %q)", fieldPath(fe), fe.Tag())
		}
		return err
	}

	if err := validateHTTPURL(c.Twitch.TokenURL, "twitch.token_url"); err != nil {
		return err
	}
	if err := validateHTTPURL(c.Twitch.HelixURL, "twitch.helix_url"); err != nil {
		return err
	}

	for _, lang := range c.Twitch.Languages {
		if strings.TrimSpace(lang) == "" {
			return fmt.Errorf("twitch.languages contains a blank entry")
		}
	}

	return nil
}

// ValidateTwitchCredentials checks that Helix credentials are configured.
// Mirrors the hard requirement the extract stage has on an app token.
func (c *Config) ValidateTwitchCredentials() error {
	if c.Twitch.ClientID == "" {
		return fmt.Errorf("TWITCH_CLIENT_ID is required")
	}
	if c.Twitch.ClientSecret == "" {
		return fmt.Errorf("TWITCH_CLIENT_SECRET is required")
	}
	return nil
}

// validateHTTPURL checks that a URL parses and uses http or https.
func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", name)
	}
	return nil
}

// fieldPath renders a validator namespace like Config.Twitch.PerPage as
// twitch.per_page-ish lower case for error messages.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}
