package schema

import (
	"errors"
	"fmt"

	"github.com/cuemby/cibcore/pkg/cib"
	"github.com/cuemby/cibcore/pkg/log"
	"github.com/cuemby/cibcore/pkg/metrics"
)

// Accepted is the result of accepting or upgrading a document
type Accepted struct {
	// Document is the accepted document. It is the input document itself
	// when no step was needed, otherwise an upgraded copy.
	Document *cib.Document

	// Schema is the version Document validated against
	Schema *Version

	// Declared is the validate-with value of the input document
	Declared string

	// Path lists every version the document was tried against, in order
	Path []string

	// Steps counts the transforms applied
	Steps int
}

// Validate checks doc against version v. Sentinels accept every document.
// The result is nil or a *ValidationError.
func (c *Catalog) Validate(doc *cib.Document, v *Version) error {
	if v.IsSentinel() || v.Rules == nil {
		return nil
	}

	err := v.Rules.Validate(doc)
	var verr *ValidationError
	if errors.As(err, &verr) {
		metrics.ValidationsTotal.WithLabelValues(v.Name, "invalid").Inc()
		verr.Schema = v.Name
		return verr
	}
	metrics.ValidationsTotal.WithLabelValues(v.Name, "valid").Inc()
	return err
}

// UpgradeOneStep applies the transform of from to a copy of doc and
// declares the result as the immediate successor of from. doc is not
// modified.
func (c *Catalog) UpgradeOneStep(doc *cib.Document, from *Version) (*cib.Document, *Version, error) {
	if from.Transform == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoTransform, from.Name)
	}
	to := c.Successor(from)
	if to == nil {
		return nil, nil, fmt.Errorf("%w: %s has no successor", ErrNoTransform, from.Name)
	}

	timer := metrics.NewTimer()
	out, err := from.Transform.Apply(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upgrade from %s: %w", from.Name, err)
	}
	timer.ObserveDurationVec(metrics.UpgradeStepDuration, from.Name)
	out.Root().CreateAttr(cib.AttrValidateWith, to.Name)

	metrics.UpgradeStepsTotal.WithLabelValues(from.Name).Inc()
	logger := log.WithSchema(from.Name)
	logger.Debug().
		Str("to", to.Name).
		Msg("Upgraded document one step")
	return out, to, nil
}

// Accept finds the version doc validates against, starting from the one it
// declares. An invalid document is upgraded one step at a time while the
// current version has a transform. It fails with ErrNoMigrationPath when
// the document is invalid and no transform leads further.
func (c *Catalog) Accept(doc *cib.Document) (*Accepted, error) {
	return c.drive(doc, false)
}

// Upgrade accepts doc and then keeps moving it towards the newest real
// version: through the transform where one exists, otherwise by declaring
// the successor. It stops at the last version the document validated
// against when no further step yields a valid document.
func (c *Catalog) Upgrade(doc *cib.Document) (*Accepted, error) {
	return c.drive(doc, true)
}

func (c *Catalog) drive(doc *cib.Document, toNewest bool) (*Accepted, error) {
	declared := doc.ValidateWith()
	current, err := c.BestSchemaFor(declared)
	if err != nil {
		return nil, err
	}

	logger := log.WithComponent("schema")
	acc := &Accepted{Document: doc, Declared: declared, Path: []string{current.Name}}
	var lastGood *Accepted

	// Every iteration either returns or moves to a later version, so the
	// catalog length bounds the loop
	for i := 0; i < c.Len(); i++ {
		verr := c.Validate(acc.Document, current)
		if verr == nil {
			acc.Schema = current
			if !toNewest || current.IsSentinel() || current == c.newest {
				return acc, nil
			}
			lastGood = acc.snapshot()

			if current.Transform != nil {
				out, to, err := c.UpgradeOneStep(acc.Document, current)
				if err != nil {
					logger.Warn().Err(err).Str("schema", current.Name).Msg("Stopping upgrade")
					return lastGood, nil
				}
				acc.Document, current = out, to
				acc.Steps++
			} else {
				current = c.Successor(current)
				acc.Document = acc.Document.WithValidateWith(current.Name)
			}
			acc.Path = append(acc.Path, current.Name)
			continue
		}

		if !errors.Is(verr, ErrValidationFailed) {
			return nil, verr
		}
		if current.Transform == nil {
			if lastGood != nil {
				logger.Debug().
					Str("schema", current.Name).
					Str("kept", lastGood.Schema.Name).
					Msg("Document does not validate against successor")
				return lastGood, nil
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrNoMigrationPath, current.Name, verr)
		}

		out, to, err := c.UpgradeOneStep(acc.Document, current)
		if err != nil {
			if lastGood != nil {
				return lastGood, nil
			}
			return nil, fmt.Errorf("%w: %w", ErrNoMigrationPath, err)
		}
		acc.Document, current = out, to
		acc.Steps++
		acc.Path = append(acc.Path, current.Name)
	}

	if lastGood != nil {
		return lastGood, nil
	}
	return nil, fmt.Errorf("%w: no valid version within %d attempts", ErrNoMigrationPath, c.Len())
}

func (a *Accepted) snapshot() *Accepted {
	s := *a
	s.Path = append([]string(nil), a.Path...)
	return &s
}
