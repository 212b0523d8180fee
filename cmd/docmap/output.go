package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/autom8ter/docmap"
	"github.com/autom8ter/docmap/errors"
	"github.com/nqd/flat"
)

// printer writes one json value per line
type printer struct {
	w       io.Writer
	flatten bool
}

func newPrinter(w io.Writer, flatten bool) *printer {
	return &printer{w: w, flatten: flatten}
}

func (p *printer) value(value any) error {
	bits, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.Internal, "failed to encode output")
	}
	if p.flatten {
		var doc map[string]any
		if json.Unmarshal(bits, &doc) == nil && doc != nil {
			flattened, err := flat.Flatten(doc, nil)
			if err != nil {
				return errors.Wrap(err, errors.Internal, "failed to flatten output")
			}
			if bits, err = json.Marshal(flattened); err != nil {
				return errors.Wrap(err, errors.Internal, "failed to encode output")
			}
		}
	}
	_, err = fmt.Fprintln(p.w, string(bits))
	return err
}

func (p *printer) values(values []any) error {
	for _, v := range values {
		if err := p.value(v); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) models(models []docmap.Model) error {
	for _, m := range models {
		if err := p.value(m); err != nil {
			return err
		}
	}
	return nil
}
