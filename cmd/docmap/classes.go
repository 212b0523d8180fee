package main

import (
	"encoding/json"
	"os"

	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/schema"
	"github.com/autom8ter/docmap/util"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type classSummary struct {
	Name         string   `json:"name"`
	Collection   string   `json:"collection"`
	Parent       string   `json:"parent,omitempty"`
	Subclasses   []string `json:"subclasses,omitempty"`
	Fields       []string `json:"fields"`
	Associations []string `json:"associations,omitempty"`
}

func summarize(c *schema.Class) classSummary {
	summary := classSummary{
		Name:       c.Name(),
		Collection: c.Collection(),
		Fields: lo.Map(c.Fields(), func(f *schema.Field, _ int) string {
			if f.Alias != "" {
				return f.Name + " (" + f.Alias + "): " + string(f.Kind)
			}
			return f.Name + ": " + string(f.Kind)
		}),
		Associations: lo.Map(c.Associations(), func(a *schema.Association, _ int) string {
			if target := a.Class(); target != nil {
				return a.Name + ": " + string(a.Kind) + " " + target.Name()
			}
			return a.Name + ": " + string(a.Kind)
		}),
	}
	if c.Parent() != nil {
		summary.Parent = c.Parent().Name()
	}
	for _, d := range c.Descendants()[1:] {
		summary.Subclasses = append(summary.Subclasses, d.Name())
	}
	return summary
}

func classesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "print the classes of the schema as yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			definitions, err := os.ReadFile(v.GetString(schemaFlag))
			if err != nil {
				return errors.Wrap(err, errors.Validation, "failed to read class definitions")
			}
			registry, err := schema.Load(definitions)
			if err != nil {
				return err
			}
			bits, err := json.Marshal(lo.Map(registry.Classes(), func(c *schema.Class, _ int) classSummary {
				return summarize(c)
			}))
			if err != nil {
				return errors.Wrap(err, errors.Internal, "failed to encode classes")
			}
			yml, err := util.JSONToYAML(bits)
			if err != nil {
				return errors.Wrap(err, errors.Internal, "failed to encode classes")
			}
			_, err = cmd.OutOrStdout().Write(yml)
			return err
		},
	}
}
