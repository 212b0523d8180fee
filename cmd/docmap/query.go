package main

import (
	"context"
	"strings"

	"github.com/autom8ter/docmap"
	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// queryFlags shape the criteria of a query command
type queryFlags struct {
	where   string
	sort    []string
	limit   int64
	skip    int64
	only    []string
	include []string
	cache   bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.where, "where", "w", "", "selector as extended json")
	cmd.Flags().StringSliceVar(&f.sort, "sort", nil, "sort keys as field[:asc|desc]")
	cmd.Flags().Int64Var(&f.limit, "limit", -1, "maximum number of documents")
	cmd.Flags().Int64Var(&f.skip, "skip", 0, "number of documents to skip")
	cmd.Flags().StringSliceVar(&f.only, "only", nil, "fields to load")
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "associations to eager load")
	cmd.Flags().BoolVar(&f.cache, "cache", false, "cache loaded documents")
}

func (f *queryFlags) criteria(criteria docmap.Criteria) (docmap.Criteria, error) {
	if f.where != "" {
		selector, err := parseSelector(f.where)
		if err != nil {
			return criteria, err
		}
		criteria = criteria.Where(selector)
	}
	if len(f.sort) > 0 {
		order, err := parseSort(f.sort)
		if err != nil {
			return criteria, err
		}
		criteria = criteria.OrderBy(order)
	}
	if f.limit >= 0 {
		criteria = criteria.Limit(f.limit)
	}
	if f.skip > 0 {
		criteria = criteria.Skip(f.skip)
	}
	if len(f.only) > 0 {
		criteria = criteria.Only(f.only...)
	}
	if len(f.include) > 0 {
		criteria = criteria.Include(f.include...)
	}
	if f.cache {
		criteria = criteria.Cache()
	}
	return criteria, nil
}

func parseSelector(where string) (bson.M, error) {
	var selector bson.M
	if err := bson.UnmarshalExtJSON([]byte(where), false, &selector); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid selector")
	}
	return storage.NormalizeDocument(selector), nil
}

func parseSort(keys []string) (bson.D, error) {
	var order bson.D
	for _, key := range keys {
		field, direction, _ := strings.Cut(key, ":")
		switch strings.ToLower(direction) {
		case "", "asc", "1":
			order = append(order, bson.E{Key: field, Value: 1})
		case "desc", "-1":
			order = append(order, bson.E{Key: field, Value: -1})
		default:
			return nil, errors.New(errors.Validation, "invalid sort direction %s", direction)
		}
	}
	return order, nil
}

// runQuery opens a session, builds the query of the class named by the first argument and runs fn
func runQuery(cmd *cobra.Command, v *viper.Viper, flags *queryFlags, className string, fn func(ctx context.Context, q *docmap.QueryContext, out *printer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = docmap.WithContextID(ctx, cmd.Name())
	s, err := openSession(ctx, v)
	if err != nil {
		return err
	}
	defer s.Close(ctx)
	q, err := s.query(ctx, className, *flags)
	if err != nil {
		return err
	}
	return fn(ctx, q, newPrinter(cmd.OutOrStdout(), v.GetBool(flattenFlag)))
}

func countCmd(v *viper.Viper) *cobra.Command {
	var (
		flags     queryFlags
		estimated bool
	)
	cmd := &cobra.Command{
		Use:   "count <class>",
		Short: "count the documents matching a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, v, &flags, args[0], func(ctx context.Context, q *docmap.QueryContext, out *printer) error {
				var (
					count int64
					err   error
				)
				if estimated {
					count, err = q.EstimatedCount(ctx, storage.CountOptions{})
				} else {
					count, err = q.Count(ctx, storage.CountOptions{})
				}
				if err != nil {
					return err
				}
				return out.value(count)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&estimated, "estimated", false, "use the collection wide estimate")
	return cmd
}

func firstCmd(v *viper.Viper) *cobra.Command {
	var (
		flags queryFlags
		n     int64
	)
	cmd := &cobra.Command{
		Use:   "first <class>",
		Short: "print the first documents of a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, v, &flags, args[0], func(ctx context.Context, q *docmap.QueryContext, out *printer) error {
				models, err := q.FirstN(ctx, n)
				if err != nil {
					return err
				}
				return out.models(models)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().Int64VarP(&n, "number", "n", 1, "number of documents")
	return cmd
}

func lastCmd(v *viper.Viper) *cobra.Command {
	var (
		flags queryFlags
		n     int64
	)
	cmd := &cobra.Command{
		Use:   "last <class>",
		Short: "print the last documents of a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, v, &flags, args[0], func(ctx context.Context, q *docmap.QueryContext, out *printer) error {
				models, err := q.LastN(ctx, n)
				if err != nil {
					return err
				}
				return out.models(models)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().Int64VarP(&n, "number", "n", 1, "number of documents")
	return cmd
}

func pluckCmd(v *viper.Viper) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "pluck <class> <field>...",
		Short: "print the values of fields across a query",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, v, &flags, args[0], func(ctx context.Context, q *docmap.QueryContext, out *printer) error {
				values, err := q.Pluck(ctx, args[1:]...)
				if err != nil {
					return err
				}
				return out.values(values)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func distinctCmd(v *viper.Viper) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "distinct <class> <field>",
		Short: "print the distinct values of a field across a query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, v, &flags, args[0], func(ctx context.Context, q *docmap.QueryContext, out *printer) error {
				values, err := q.Distinct(ctx, args[1])
				if err != nil {
					return err
				}
				return out.values(values)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func tallyCmd(v *viper.Viper) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "tally <class> <field>",
		Short: "count the documents per value of a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, v, &flags, args[0], func(ctx context.Context, q *docmap.QueryContext, out *printer) error {
				entries, err := q.Tally(ctx, args[1])
				if err != nil {
					return err
				}
				for _, e := range entries {
					if err := out.value(map[string]any{"value": e.Value, "count": e.Count}); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func aggregateCmd(v *viper.Viper) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "aggregate <class> <field>",
		Short: "print the count, sum, average, min and max of a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, v, &flags, args[0], func(ctx context.Context, q *docmap.QueryContext, out *printer) error {
				aggregates, err := q.Aggregates(ctx, args[1])
				if err != nil {
					return err
				}
				return out.value(map[string]any{
					"count": aggregates.Count,
					"sum":   aggregates.Sum,
					"avg":   aggregates.Avg,
					"min":   aggregates.Min,
					"max":   aggregates.Max,
				})
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func explainCmd(v *viper.Viper) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "explain <class>",
		Short: "describe how the store executes a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, v, &flags, args[0], func(ctx context.Context, q *docmap.QueryContext, out *printer) error {
				plan, err := q.Explain(ctx)
				if err != nil {
					return err
				}
				return out.value(map[string]any(plan))
			})
		},
	}
	flags.register(cmd)
	return cmd
}
