package catalog

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
)

// Load reads a catalog file. Files ending in .gz are decompressed.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	c, err := Read(r)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return c, nil
}

// Read decodes and validates a catalog document.
func Read(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document held in memory.
func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty catalog document")
	}

	var doc document
	if err := doc.decode(jx.DecodeBytes(data)); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return build(doc)
}

func (doc *document) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				var p productDoc
				if err := p.decode(d); err != nil {
					return errors.Wrapf(err, "product %d", len(doc.Products))
				}
				doc.Products = append(doc.Products, p)
				return nil
			})
		case "discounts":
			return d.Arr(func(d *jx.Decoder) error {
				var dd discountDoc
				if err := dd.decode(d); err != nil {
					return errors.Wrapf(err, "discount %d", len(doc.Discounts))
				}
				doc.Discounts = append(doc.Discounts, dd)
				return nil
			})
		default:
			return d.Skip()
		}
	})
}

func (p *productDoc) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = decodeID(d)
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

func (dd *discountDoc) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			dd.ID, err = decodeID(d)
		case "products":
			dd.Products, err = decodeIDs(d)
		case "rules":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "discountFunc":
					dd.Func, err = d.Str()
				case "parameters":
					err = d.Arr(func(d *jx.Decoder) error {
						v, err := decodeDecimal(d)
						if err != nil {
							return err
						}
						dd.Parameters = append(dd.Parameters, v)
						return nil
					})
				case "cantBeUsedWith":
					dd.CantBeUsedWith, err = decodeIDs(d)
				default:
					err = d.Skip()
				}
				if err != nil {
					return errors.Wrap(err, key)
				}
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

// decodeID accepts string or integer identifiers.
func decodeID(d *jx.Decoder) (string, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		if !n.IsInt() {
			return "", errors.Errorf("non-integer id %s", n)
		}
		return n.String(), nil
	default:
		return "", errors.Errorf("unexpected %s for id", tt)
	}
}

func decodeIDs(d *jx.Decoder) ([]string, error) {
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		id, err := decodeID(d)
		if err != nil {
			return err
		}
		out = append(out, id)
		return nil
	})
	return out, err
}

// decodeDecimal accepts JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for decimal", tt)
	}
}
