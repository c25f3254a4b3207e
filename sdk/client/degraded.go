package client

import (
	"context"

	"github.com/faciam-dev/geosurvey/pkg/form"
)

// Degraded wraps a Client with the lenient contract of the desktop plugin:
// failures are logged and turned into empty results.
type Degraded struct {
	C *Client
}

func (d Degraded) warn(op string, err error) {
	d.C.log.Warnw("backend call failed", "op", op, "error", err)
}

func (d Degraded) Forms(ctx context.Context) []Form {
	out, err := d.C.Forms(ctx)
	if err != nil {
		d.warn("forms", err)
		return []Form{}
	}
	return out
}

func (d Degraded) FreeResponses(ctx context.Context, limit, offset int) []FreeResponse {
	out, err := d.C.FreeResponses(ctx, limit, offset)
	if err != nil {
		d.warn("free_responses", err)
		return []FreeResponse{}
	}
	return out
}

func (d Degraded) DeleteForm(ctx context.Context, formID string) bool {
	if err := d.C.DeleteForm(ctx, formID); err != nil {
		d.warn("delete_form", err)
		return false
	}
	return true
}

func (d Degraded) CreateForm(ctx context.Context, pkg form.FormPackage) *CreateFormResult {
	out, err := d.C.CreateForm(ctx, pkg)
	if err != nil {
		d.warn("create_form", err)
		return nil
	}
	return out
}

func (d Degraded) UserConfig(ctx context.Context) *UserConfig {
	out, err := d.C.UserConfig(ctx)
	if err != nil {
		d.warn("user_config", err)
		return nil
	}
	return out
}

func (d Degraded) PluginMessage(ctx context.Context) PluginMessage {
	out, err := d.C.PluginMessage(ctx)
	if err != nil {
		d.warn("plugin_message", err)
		return PluginMessage{}
	}
	return out
}

func (d Degraded) ValidateDatabase(ctx context.Context, cfg PostgresConfig) bool {
	ok, err := d.C.ValidateDatabase(ctx, cfg)
	if err != nil {
		d.warn("validate_database", err)
		return false
	}
	return ok
}

func (d Degraded) Ping(ctx context.Context) bool {
	return d.C.Ping(ctx) == nil
}
