package snapshot

import (
	"context"

	"browser-pilot/internal/entity"
	"browser-pilot/internal/ports"
	"browser-pilot/pkg/logg"
	"browser-pilot/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	extractorName   = "SnapshotExtractor"
	extractorTracer = "snapshot.extractor"
)

// Extractor walks the live document and emits element descriptors with
// ranked selector candidates. Read-only: no navigation, no mutation.
type Extractor struct {
	inspector ports.PageInspector
	logger    *zap.Logger
	tracer    trace.Tracer
}

type Params struct {
	fx.In

	Inspector ports.PageInspector
	Logger    *zap.Logger
}

func New(params Params) *Extractor {
	return &Extractor{
		inspector: params.Inspector,
		logger:    params.Logger.With(zap.String(logg.Layer, extractorName)),
		tracer:    otel.Tracer(extractorTracer),
	}
}

// Snapshot returns descriptors for elements matching scope, in document
// order. An empty page yields an empty slice, not an error.
func (e *Extractor) Snapshot(ctx context.Context, scope entity.Scope) (descriptors []entity.ElementDescriptor, err error) {
	const op = "Snapshot"
	logger := e.logger.With(zap.String(logg.Operation, op), zap.String(logg.Scope, string(scope)))

	ctx, step := tracing.StartSpan(ctx, e.tracer, logger, op, attribute.String("scope", string(scope)))
	defer func() {
		step.End(err)
	}()

	step.AddEvent("evaluating extraction script")

	result, err := e.inspector.Inspect(ctx, extractionScript(scope))
	if err != nil {
		return nil, err
	}

	rows, ok := result.([]interface{})
	if !ok {
		logger.Warn("Unexpected extraction result shape")

		return []entity.ElementDescriptor{}, nil
	}

	descriptors = make([]entity.ElementDescriptor, 0, len(rows))

	for _, row := range rows {
		fields, ok := row.(map[string]interface{})
		if !ok {
			continue
		}

		d := entity.ElementDescriptor{
			Kind:        entity.ElementKind(getString(fields, "kind")),
			Tag:         getString(fields, "tag"),
			ID:          getString(fields, "id"),
			Name:        getString(fields, "name"),
			Placeholder: getString(fields, "placeholder"),
			Type:        getString(fields, "type"),
			Text:        getString(fields, "text"),
			Classes:     getStrings(fields, "classes"),
			Required:    getBool(fields, "required"),
			Visible:     getBool(fields, "visible"),
		}
		d.Selectors = BuildCandidates(d)

		descriptors = append(descriptors, d)
	}

	logger.Debug("Snapshot taken", zap.Int("elements", len(descriptors)))

	return descriptors, nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}

	return ""
}

func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}

	return false
}

func getStrings(m map[string]interface{}, key string) []string {
	items, ok := m[key].([]interface{})
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))

	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out
}
