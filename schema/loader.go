package schema

import (
	_ "embed"
	"strings"

	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/util"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed definition.json
var definitionSchema string

var definitionLoader = gojsonschema.NewStringLoader(definitionSchema)

// Load parses YAML or JSON class definitions into a resolved registry.
//
//	classes:
//	  - name: Person
//	    fields:
//	      - name: "n"
//	        as: name
//	        type: string
//	    associations:
//	      - name: addresses
//	        kind: embeds_many
//	        class: Address
func Load(definitions []byte) (*Registry, error) {
	jsonContent, err := util.YAMLToJSON(definitions)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to convert class definitions to json")
	}
	if err := checkNames(jsonContent); err != nil {
		return nil, err
	}
	result, err := gojsonschema.Validate(definitionLoader, gojsonschema.NewBytesLoader(jsonContent))
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to validate class definitions")
	}
	if !result.Valid() {
		var errs []string
		for _, err := range result.Errors() {
			errs = append(errs, err.String())
		}
		return nil, errors.New(errors.Validation, "invalid class definitions: %s", strings.Join(errs, ","))
	}
	var classes []*Class
	for _, def := range gjson.GetBytes(jsonContent, "classes").Array() {
		c, err := loadClass(def)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return NewRegistry(classes...)
}

var namePaths = []string{"name", "collection", "parent", "fields.#.name", "fields.#.as", "associations.#.name", "associations.#.class"}

// checkNames rejects names that yaml decoded as something other than a string, such as an unquoted n or on.
func checkNames(jsonContent []byte) error {
	for i, def := range gjson.GetBytes(jsonContent, "classes").Array() {
		for _, path := range namePaths {
			values := []gjson.Result{def.Get(path)}
			if strings.Contains(path, "#") {
				values = values[0].Array()
			}
			for _, v := range values {
				if v.Exists() && v.Type != gjson.String {
					return errors.New(errors.Validation, "class definitions: classes.%d.%s must be a string, got %s (quote yaml names such as n, y, no, on)", i, path, v.Raw)
				}
			}
		}
	}
	return nil
}

func loadClass(def gjson.Result) (*Class, error) {
	name := def.Get("name").String()
	var opts []ClassOpt
	if collection := def.Get("collection").String(); collection != "" {
		opts = append(opts, WithCollection(collection))
	}
	if parent := def.Get("parent").String(); parent != "" {
		opts = append(opts, WithParent(parent))
	}
	for _, f := range def.Get("fields").Array() {
		field := Field{
			Name:  f.Get("name").String(),
			Alias: f.Get("as").String(),
			Kind:  ParseKind(cast.ToString(f.Get("type").Value())),
		}
		if elem := f.Get("elem"); elem.Exists() {
			field.Elem = ParseKind(elem.String())
		}
		if d := f.Get("default"); d.Exists() {
			field.Default = d.Value()
		}
		if err := util.ValidateStruct(&field); err != nil {
			return nil, errors.Wrap(err, 0, "class %s: invalid field %s", name, field.Name)
		}
		opts = append(opts, WithField(field))
	}
	for _, a := range def.Get("associations").Array() {
		var association Association
		if err := util.Decode(a.Value(), &association); err != nil {
			return nil, errors.Wrap(err, errors.Validation, "class %s: failed to decode association", name)
		}
		if err := util.ValidateStruct(&association); err != nil {
			return nil, errors.Wrap(err, 0, "class %s: invalid association %s", name, association.Name)
		}
		opts = append(opts, WithAssociation(association))
	}
	return NewClass(name, opts...), nil
}
