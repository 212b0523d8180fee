package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configTemplate = `# {{ .title | title }} docmap configuration
engine: {{ .engine | default "kv" }}
storage-path: {{ .storagePath | quote }}
schema: {{ .schema | quote }}
locale: {{ .locale | lower }}
{{- if .fallbacks }}
fallbacks:
{{- range $locale, $chain := .fallbacks }}
  {{ $locale }}: [{{ join ", " $chain }}]
{{- end }}
{{- end }}
log-level: error
`

func renderConfig(data map[string]any) ([]byte, error) {
	tmpl, err := template.New("config").Funcs(sprig.TxtFuncMap()).Parse(configTemplate)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(nil)
	if err := tmpl.Execute(buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func initCmd(v *viper.Viper) *cobra.Command {
	var (
		projectPath string
		title       string
		fallbacks   map[string]string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "create a new docmap project with example class definitions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.MkdirAll(projectPath, 0755); err != nil {
				return errors.Wrap(err, errors.Internal, "failed to initialize project")
			}
			schemaPath := filepath.Join(projectPath, "schema.yaml")
			if err := os.WriteFile(schemaPath, testutil.SchemaDefinitions, 0644); err != nil {
				return errors.Wrap(err, errors.Internal, "failed to initialize project")
			}
			chains := map[string][]string{}
			for l, chain := range fallbacks {
				chains[l] = strings.Split(chain, "|")
			}
			config, err := renderConfig(map[string]any{
				"title":       title,
				"engine":      v.GetString(engineFlag),
				"storagePath": filepath.Join(projectPath, "data"),
				"schema":      schemaPath,
				"locale":      v.GetString(localeFlag),
				"fallbacks":   chains,
			})
			if err != nil {
				return errors.Wrap(err, errors.Internal, "failed to initialize project")
			}
			if err := os.WriteFile(filepath.Join(projectPath, "config.yaml"), config, 0644); err != nil {
				return errors.Wrap(err, errors.Internal, "failed to initialize project")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "new project created: %v\n", projectPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectPath, "path", "p", ".", "path to project directory")
	cmd.Flags().StringVarP(&title, "title", "t", "change me", "title of project")
	cmd.Flags().StringToStringVar(&fallbacks, "fallbacks", nil, "fallback locales per locale, separated by | (fr=en|de)")
	return cmd
}
