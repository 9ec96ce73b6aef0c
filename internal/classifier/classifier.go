// Package classifier turns a citizen report and its postal code into a
// five-field classification by prompting a chat model twice: once to
// geolocate the postal code and once to categorize the issue. Model output
// is untrusted; every failure is absorbed into defaults and reported on the
// returned Outcome.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tellnow/backend/internal/ai"
	"tellnow/backend/internal/util"
)

const (
	DefaultGeoTemperature            = 0.1
	DefaultClassificationTemperature = 0.3
	DefaultCallTimeout               = 20 * time.Second
)

var errNoJSON = errors.New("no JSON object in reply")

// Options configures a Classifier. Zero values select the defaults.
type Options struct {
	Categories                []Category
	GeoTemperature            float64
	ClassificationTemperature float64
	CallTimeout               time.Duration
	// StrictTaxonomy clamps categories outside Categories to "other".
	StrictTaxonomy bool
	// Debug receives extracted replies and merged results; nil disables it.
	Debug logrus.FieldLogger
}

// Classifier is immutable after New and safe for concurrent use.
type Classifier struct {
	completer      ai.Completer
	categories     []Category
	known          map[string]struct{}
	geoTemp        float64
	classTemp      float64
	callTimeout    time.Duration
	strictTaxonomy bool
	debug          logrus.FieldLogger
}

type stepResult struct {
	data      map[string]any
	err       error
	elapsedMs int64
}

// New builds a Classifier around the given completer.
func New(completer ai.Completer, opts Options) *Classifier {
	categories := opts.Categories
	if len(categories) == 0 {
		categories = Taxonomy()
	} else {
		categories = append([]Category(nil), categories...)
	}
	geoTemp := opts.GeoTemperature
	if geoTemp <= 0 {
		geoTemp = DefaultGeoTemperature
	}
	classTemp := opts.ClassificationTemperature
	if classTemp <= 0 {
		classTemp = DefaultClassificationTemperature
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Classifier{
		completer:      completer,
		categories:     categories,
		known:          categoryIndex(categories),
		geoTemp:        geoTemp,
		classTemp:      classTemp,
		callTimeout:    timeout,
		strictTaxonomy: opts.StrictTaxonomy,
		debug:          opts.Debug,
	}
}

// Categories returns a copy of the taxonomy offered to the model.
func (c *Classifier) Categories() []Category {
	return append([]Category(nil), c.categories...)
}

// IsKnownCategory reports whether key belongs to the taxonomy.
func (c *Classifier) IsKnownCategory(key string) bool {
	_, ok := c.known[key]
	return ok
}

// ClassifyIssue returns only the Result of Classify.
func (c *Classifier) ClassifyIssue(ctx context.Context, issueText, postalCode string) Result {
	return c.Classify(ctx, issueText, postalCode).Result
}

// Classify geolocates postalCode and categorizes issueText concurrently, then
// merges both replies. It never fails: the Result is always fully populated.
func (c *Classifier) Classify(ctx context.Context, issueText, postalCode string) Outcome {
	requestID := uuid.NewString()

	var geo, class stepResult
	var g errgroup.Group
	g.Go(func() error {
		geo = c.runStep(ctx, geoMessages(postalCode), c.geoTemp)
		return nil
	})
	g.Go(func() error {
		class = c.runStep(ctx, classificationMessages(issueText, c.categories), c.classTemp)
		return nil
	})
	_ = g.Wait()

	c.debugStep(requestID, "geo data extracted", geo)
	c.debugStep(requestID, "classification data extracted", class)

	outcome := c.merge(geo, class)
	outcome.RequestID = requestID

	if c.debug != nil {
		c.debug.WithFields(logrus.Fields{
			"request_id": requestID,
			"status":     outcome.Status,
			"reason":     outcome.Reason,
			"result":     outcome.Result,
		}).Debug("classification merged")
	}
	return outcome
}

func (c *Classifier) runStep(ctx context.Context, messages []ai.Message, temperature float64) (res stepResult) {
	timer := util.StartTimer()
	defer func() {
		if r := recover(); r != nil {
			res = stepResult{err: fmt.Errorf("completer panic: %v", r)}
		}
		res.elapsedMs = timer.ElapsedMs()
	}()
	if c.completer == nil || !c.completer.Enabled() {
		return stepResult{err: ai.ErrDisabled}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	content, err := c.completer.Complete(callCtx, ai.CompletionRequest{
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return stepResult{err: err}
	}
	data, ok := ExtractJSON(content)
	if !ok {
		return stepResult{err: errNoJSON}
	}
	return stepResult{data: data}
}

// merge takes city/coordinates from the geo reply and the rest from the
// classification reply, each field falling back to its default on its own.
func (c *Classifier) merge(geo, class stepResult) Outcome {
	result := DefaultResult()
	var reasons []string

	if geo.err != nil {
		reasons = append(reasons, "geo: "+geo.err.Error())
	} else {
		if v, ok := stringField(geo.data, "city"); ok {
			result.City = v
		} else {
			reasons = append(reasons, "geo: missing city")
		}
		if v, ok := coordinatesField(geo.data, "coordinates"); ok {
			result.Coordinates = v
		} else {
			reasons = append(reasons, "geo: missing coordinates")
		}
	}

	if class.err != nil {
		reasons = append(reasons, "classification: "+class.err.Error())
	} else {
		if v, ok := stringField(class.data, "category"); ok {
			result.Category = v
			if c.strictTaxonomy && !c.IsKnownCategory(v) {
				reasons = append(reasons, fmt.Sprintf("classification: unknown category %q", v))
				result.Category = DefaultCategory
			}
		} else {
			reasons = append(reasons, "classification: missing category")
		}
		if v, ok := stringField(class.data, "urgency"); ok {
			result.Urgency = normalizeUrgency(v)
		} else {
			reasons = append(reasons, "classification: missing urgency")
		}
		if v, ok := stringField(class.data, "explanation"); ok {
			result.Explanation = v
		} else {
			reasons = append(reasons, "classification: missing explanation")
		}
	}

	status := StatusOK
	switch {
	case geo.err != nil && class.err != nil:
		status = StatusFailed
	case len(reasons) > 0:
		status = StatusDegraded
	}
	return Outcome{
		Result: result,
		Status: status,
		Reason: strings.Join(reasons, "; "),
	}
}

func (c *Classifier) debugStep(requestID, msg string, step stepResult) {
	if c.debug == nil {
		return
	}
	entry := c.debug.WithFields(logrus.Fields{
		"request_id": requestID,
		"elapsed_ms": step.elapsedMs,
	})
	if step.err != nil {
		entry.WithError(step.err).Debug(msg)
		return
	}
	entry.WithField("data", step.data).Debug(msg)
}
