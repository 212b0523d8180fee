package main

import (
	"context"
	"os"
	"strings"

	"github.com/autom8ter/docmap"
	"github.com/autom8ter/docmap/eager"
	"github.com/autom8ter/docmap/errors"
	_ "github.com/autom8ter/docmap/kv/badger"
	"github.com/autom8ter/docmap/schema"
	"github.com/autom8ter/docmap/storage"
	"github.com/autom8ter/docmap/storage/kvstore"
	"github.com/autom8ter/docmap/storage/mongostore"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	configFlag      = "config"
	schemaFlag      = "schema"
	engineFlag      = "engine"
	providerFlag    = "provider"
	storagePathFlag = "storage-path"
	mongoURIFlag    = "mongo-uri"
	databaseFlag    = "database"
	localeFlag      = "locale"
	logLevelFlag    = "log-level"
	legacyFlag      = "legacy"
	flattenFlag     = "flatten"
)

// newRootCommand reads settings from flags, environment variables prefixed with DOCMAP and an
// optional config file, in that order.
func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("DOCMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "docmap",
		Short:         "query documents through a class schema",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := v.GetString(configFlag)
			if path == "" {
				return nil
			}
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return errors.Wrap(err, errors.Validation, "failed to read config file %s", path)
			}
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.String(configFlag, "", "path to a config file")
	flags.StringP(schemaFlag, "s", "docmap.yaml", "path to the class definitions (yaml or json)")
	flags.String(engineFlag, "kv", "storage engine (kv or mongo)")
	flags.String(providerFlag, "badger", "key value provider of the kv engine")
	flags.String(storagePathFlag, "./tmp", "storage path of the kv engine")
	flags.String(mongoURIFlag, "mongodb://localhost:27017", "connection uri of the mongo engine")
	flags.String(databaseFlag, "docmap", "database of the mongo engine")
	flags.String(localeFlag, schema.DefaultLocale, "locale localized fields are read in")
	flags.String(logLevelFlag, "error", "log level (debug, info, warn, error)")
	flags.Bool(legacyFlag, false, "return raw stored values from pluck and distinct")
	flags.Bool(flattenFlag, false, "flatten nested documents into dotted keys")
	for _, name := range []string{configFlag, schemaFlag, engineFlag, providerFlag, storagePathFlag, mongoURIFlag, databaseFlag, localeFlag, logLevelFlag, legacyFlag, flattenFlag} {
		mustBindPFlag(v, name, flags.Lookup(name))
	}

	root.AddCommand(
		initCmd(v),
		countCmd(v),
		firstCmd(v),
		lastCmd(v),
		pluckCmd(v),
		distinctCmd(v),
		tallyCmd(v),
		aggregateCmd(v),
		explainCmd(v),
		importCmd(v),
		classesCmd(v),
	)
	return root
}

func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

// session holds an open store and the schema of a command
type session struct {
	registry    *schema.Registry
	config      docmap.Config
	logger      docmap.Logger
	collections eager.CollectionFunc
	load        func(ctx context.Context, collection string, docs []bson.M) (int, error)
	close       func(ctx context.Context) error
}

func openSession(ctx context.Context, v *viper.Viper) (*session, error) {
	definitions, err := os.ReadFile(v.GetString(schemaFlag))
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to read class definitions")
	}
	registry, err := schema.Load(definitions)
	if err != nil {
		return nil, err
	}
	config := docmap.DefaultConfig()
	config.Locale = v.GetString(localeFlag)
	config.LogLevel = v.GetString(logLevelFlag)
	config.LegacyPluckDistinct = v.GetBool(legacyFlag)
	if fallbacks := v.GetStringMapStringSlice("fallbacks"); len(fallbacks) > 0 {
		config.Fallbacks = fallbacks
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger, err := docmap.NewLogger(config.LogLevel, map[string]any{"engine": v.GetString(engineFlag)})
	if err != nil {
		return nil, err
	}
	s := &session{
		registry: registry,
		config:   config,
		logger:   logger,
	}
	switch engine := v.GetString(engineFlag); engine {
	case "kv":
		store, err := kvstore.Open(v.GetString(providerFlag), map[string]any{
			"storage_path": v.GetString(storagePathFlag),
		})
		if err != nil {
			return nil, err
		}
		s.collections = func(name string) storage.Collection {
			return store.Collection(name)
		}
		s.load = func(ctx context.Context, collection string, docs []bson.M) (int, error) {
			return store.Collection(collection).Load(ctx, docs)
		}
		s.close = func(ctx context.Context) error {
			return store.Close()
		}
	case "mongo":
		store, err := mongostore.Connect(ctx, v.GetString(mongoURIFlag), v.GetString(databaseFlag))
		if err != nil {
			return nil, err
		}
		s.collections = func(name string) storage.Collection {
			return store.Collection(name)
		}
		s.load = func(ctx context.Context, collection string, docs []bson.M) (int, error) {
			c := store.Collection(collection)
			for i, doc := range docs {
				if _, err := c.InsertOne(ctx, doc); err != nil {
					return i, err
				}
			}
			return len(docs), nil
		}
		s.close = store.Close
	default:
		return nil, errors.New(errors.Validation, "unknown storage engine %s", engine)
	}
	return s, nil
}

// query returns a query context over the class built from the query flags
func (s *session) query(ctx context.Context, className string, q queryFlags) (*docmap.QueryContext, error) {
	class, ok := s.registry.Class(className)
	if !ok {
		return nil, errors.New(errors.NotFound, "unknown class %s", className)
	}
	criteria, err := q.criteria(docmap.NewCriteria(class, s.collections(class.Collection())))
	if err != nil {
		return nil, err
	}
	locale := s.config.LocaleChain()
	return docmap.NewQueryContext(criteria,
		docmap.WithConfig(s.config),
		docmap.WithLogger(s.logger),
		docmap.WithFactory(docmap.DocumentFactory{Registry: s.registry, Locale: locale}),
		docmap.WithEagerLoader(eager.New(s.collections, eager.WithRegistry(s.registry), eager.WithLocale(locale))),
	)
}

func (s *session) Close(ctx context.Context) error {
	s.logger.Sync(ctx)
	return s.close(ctx)
}
