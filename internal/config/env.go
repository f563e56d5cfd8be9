// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"fmt"
	"io"
	"os"
	"strings"
)

var sectionNotes = map[string]string{
	"Slack Settings":  "Get a webhook URL from https://api.slack.com/messaging/webhooks",
	"Notion Settings": "Create an integration at https://www.notion.so/my-integrations",
	"OpenAI Settings": "Get an API key from https://platform.openai.com/api-keys",
}

// WriteSampleEnv writes one KEY="default" line per setting, grouped by
// section. Credentials are left empty.
func WriteSampleEnv(w io.Writer) error {
	var b strings.Builder
	b.WriteString("# arXiv Notifier Configuration\n")

	section := ""
	for _, s := range Settings {
		if s.Section != section {
			section = s.Section
			fmt.Fprintf(&b, "\n# %s\n", section)
			if note, ok := sectionNotes[section]; ok {
				fmt.Fprintf(&b, "# %s\n", note)
			}
		}
		if s.Secret != "" {
			fmt.Fprintf(&b, "# May instead be stored in .secrets/%s\n", s.Secret)
		}
		if s.Default == "" {
			fmt.Fprintf(&b, "%s=\n", s.Env)
			continue
		}
		fmt.Fprintf(&b, "%s=%q\n", s.Env, s.Default)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// GenerateEnvFile writes the sample env to path.
func GenerateEnvFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteSampleEnv(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
