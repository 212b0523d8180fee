package main

import (
	"bufio"
	"bytes"
	"context"
	"os"

	"github.com/autom8ter/docmap"
	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// readDocuments reads one extended json document per line
func readDocuments(path string) ([]bson.M, error) {
	bits, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to read %s", path)
	}
	var docs []bson.M
	scanner := bufio.NewScanner(bytes.NewReader(bits))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var doc bson.M
		if err := bson.UnmarshalExtJSON(text, false, &doc); err != nil {
			return nil, errors.Wrap(err, errors.Validation, "%s:%d: invalid document", path, line)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to read %s", path)
	}
	return docs, nil
}

func importCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "import <class> <file>",
		Short: "load extended json lines into the collection of a class",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = docmap.WithContextID(ctx, cmd.Name())
			docs, err := readDocuments(args[1])
			if err != nil {
				return err
			}
			s, err := openSession(ctx, v)
			if err != nil {
				return err
			}
			defer s.Close(ctx)
			class, ok := s.registry.Class(args[0])
			if !ok {
				return errors.New(errors.NotFound, "unknown class %s", args[0])
			}
			if class.Hereditary() {
				for _, doc := range docs {
					if _, ok := doc[schema.TypeField]; !ok {
						doc[schema.TypeField] = class.Name()
					}
				}
			}
			n, err := s.load(ctx, class.Collection(), docs)
			if err != nil {
				return err
			}
			s.logger.Info(ctx, "imported documents", map[string]any{"class": class.Name(), "count": n})
			return newPrinter(cmd.OutOrStdout(), false).value(map[string]any{"imported": n})
		},
	}
}
