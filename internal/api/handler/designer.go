package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/faciam-dev/geosurvey/internal/api/schema"
	"github.com/faciam-dev/geosurvey/internal/layers"
	"github.com/faciam-dev/geosurvey/pkg/ddl"
	"github.com/faciam-dev/geosurvey/pkg/form"
	"github.com/faciam-dev/geosurvey/pkg/ident"
)

// DesignerHandler serves the stateless form designer operations: field
// validation, identifier normalization, DDL rendering and packaging.
type DesignerHandler struct {
	// Assembler builds packages. A zero value gets the spatial generator.
	Assembler form.Assembler
	// Generator renders standalone scripts.
	Generator ddl.Generator
}

type validateInput struct{ Body schema.ValidateForm }
type validateOutput struct{ Body schema.FormVerdict }

type normalizeInput struct{ Body schema.Normalize }
type normalizeOutput struct{ Body schema.Names }

type ddlInput struct{ Body schema.GenerateDDL }
type ddlOutput struct{ Body schema.DDL }

type packageInput struct{ Body schema.AssemblePackage }
type packageOutput struct{ Body schema.Package }

type fieldTypesOutput struct{ Body []schema.FieldType }

type planParam struct {
	Plan string `path:"plan"`
}
type planOutput struct{ Body form.PlanLimits }

type geomParam struct {
	GeomType string `path:"geomType"`
}
type styleOutput struct{ Body schema.Style }

// RegisterDesigner registers the designer endpoints.
func RegisterDesigner(api huma.API, h *DesignerHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "listFieldTypes",
		Method:      http.MethodGet,
		Path:        "/v1/field-types",
		Summary:     "List supported field types",
		Tags:        []string{"Designer"},
	}, h.fieldTypes)
	huma.Register(api, huma.Operation{
		OperationID: "getPlanLimits",
		Method:      http.MethodGet,
		Path:        "/v1/plans/{plan}",
		Summary:     "Limits of a subscription plan",
		Tags:        []string{"Designer"},
	}, h.plan)
	huma.Register(api, huma.Operation{
		OperationID: "validateForm",
		Method:      http.MethodPost,
		Path:        "/v1/forms/validate",
		Summary:     "Validate a form's title and fields",
		Tags:        []string{"Designer"},
	}, h.validate)
	huma.Register(api, huma.Operation{
		OperationID: "normalizeFields",
		Method:      http.MethodPost,
		Path:        "/v1/fields/normalize",
		Summary:     "Turn labels into column identifiers",
		Tags:        []string{"Designer"},
	}, h.normalize)
	huma.Register(api, huma.Operation{
		OperationID: "generateDDL",
		Method:      http.MethodPost,
		Path:        "/v1/ddl",
		Summary:     "Render the PostGIS script of a survey table",
		Tags:        []string{"Designer"},
	}, h.ddl)
	huma.Register(api, huma.Operation{
		OperationID: "assemblePackage",
		Method:      http.MethodPost,
		Path:        "/v1/packages",
		Summary:     "Assemble the registration payload of a form",
		Tags:        []string{"Designer"},
	}, h.assemble)
	huma.Register(api, huma.Operation{
		OperationID: "getLayerStyle",
		Method:      http.MethodGet,
		Path:        "/v1/styles/{geomType}",
		Summary:     "Default style of a geometry type",
		Tags:        []string{"Layers"},
	}, h.style)
}

func (h *DesignerHandler) fieldTypes(ctx context.Context, _ *struct{}) (*fieldTypesOutput, error) {
	out := make([]schema.FieldType, len(form.Types))
	for i, t := range form.Types {
		out[i] = schema.FieldType{Type: string(t), SQLType: ddl.SQLType(t), HasOptions: t.HasOptions()}
	}
	return &fieldTypesOutput{Body: out}, nil
}

func (h *DesignerHandler) plan(ctx context.Context, in *planParam) (*planOutput, error) {
	return &planOutput{Body: form.LimitsFor(form.Plan(strings.ToLower(in.Plan)))}, nil
}

func planOf(s string) form.Plan {
	if s == "" {
		return form.PlanFree
	}
	return form.Plan(s)
}

func (h *DesignerHandler) validate(ctx context.Context, in *validateInput) (*validateOutput, error) {
	limit := form.LimitsFor(planOf(in.Body.Plan)).Fields
	err := form.ValidateForm(in.Body.Title, schema.Specs(in.Body.Fields), limit)
	out := &validateOutput{Body: schema.FormVerdict{Valid: err == nil}}
	if err != nil {
		out.Body.Error = err.Error()
		var ve *form.ValidationError
		if errors.As(err, &ve) {
			out.Body.Field = ve.Field
		}
	}
	return out, nil
}

func (h *DesignerHandler) normalize(ctx context.Context, in *normalizeInput) (*normalizeOutput, error) {
	seq := ident.NewSequence()
	for _, n := range in.Body.Existing {
		seq.Reserve(n)
	}
	names := make([]string, len(in.Body.Labels))
	for i, l := range in.Body.Labels {
		names[i] = seq.Next(l)
	}
	return &normalizeOutput{Body: schema.Names{Names: names}}, nil
}

func (h *DesignerHandler) ddl(ctx context.Context, in *ddlInput) (*ddlOutput, error) {
	table := in.Body.Table
	if table == "" {
		table = form.NewTableName(h.Assembler.IntN)
	}
	script, err := h.Generator.GenerateSpatial(table, form.APIFields(schema.Specs(in.Body.Fields)), in.Body.Title)
	if err != nil {
		return nil, validationError(err)
	}
	return &ddlOutput{Body: schema.DDL{Table: table, SQL: script}}, nil
}

func (h *DesignerHandler) assemble(ctx context.Context, in *packageInput) (*packageOutput, error) {
	plan := planOf(in.Body.Plan)
	fields := schema.Specs(in.Body.Fields)
	if err := form.ValidateForm(in.Body.Title, fields, form.LimitsFor(plan).Fields); err != nil {
		return nil, validationError(err)
	}
	asm := h.Assembler
	if asm.DDL == nil {
		asm.DDL = h.Generator.GenerateSpatial
	}
	pkg, err := asm.Assemble(in.Body.Title, in.Body.Description, fields, plan, in.Body.CanUsePostgres)
	if err != nil {
		return nil, validationError(err)
	}
	return &packageOutput{Body: schema.Package{Package: *pkg, Validation: pkg.Summary()}}, nil
}

func (h *DesignerHandler) style(ctx context.Context, in *geomParam) (*styleOutput, error) {
	st, ok := layers.StyleFor(in.GeomType)
	if !ok {
		return nil, huma.Error404NotFound("no default style for " + in.GeomType)
	}
	return &styleOutput{Body: st}, nil
}

// validationError maps a rejected field schema to a 422 with the offending
// field as location.
func validationError(err error) error {
	var ve *form.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	loc := "body.fields"
	switch {
	case errors.Is(err, form.ErrMissingTitle):
		loc = "body.title"
	case ve.Field != "":
		loc = "body.fields." + ve.Field
	}
	return huma.NewError(http.StatusUnprocessableEntity, err.Error(), &huma.ErrorDetail{Location: loc, Message: err.Error()})
}
