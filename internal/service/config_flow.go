package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"atmeex_cloud/internal/logger"
	"atmeex_cloud/internal/models"
	"atmeex_cloud/internal/repository"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Flow result types.
const (
	FlowResultForm        = "form"
	FlowResultCreateEntry = "create_entry"
	FlowResultAbort       = "abort"

	FlowStepUser = "user"

	errNoDevices       = "no devices found in account"
	errInvalidInput    = "invalid_input"
	abortAlreadyConfig = "already_configured"
	flowErrorKeyBase   = "base"
	userStepSchemaURL  = "user_step.json"
)

//go:embed schemas/user_step.json
var userStepSchema []byte

// FlowResult is what the host renders after a flow step.
type FlowResult struct {
	Type   string              `json:"type"`
	StepID string              `json:"step_id,omitempty"`
	Schema json.RawMessage     `json:"data_schema,omitempty"`
	Errors map[string]string   `json:"errors,omitempty"`
	Reason string              `json:"reason,omitempty"`
	Title  string              `json:"title,omitempty"`
	Entry  *models.ConfigEntry `json:"entry,omitempty"`
}

// EntryCreator persists a finished entry and sets it up.
type EntryCreator interface {
	AddEntry(ctx context.Context, entry models.ConfigEntry) (models.ConfigEntry, error)
}

// ConfigFlow validates vendor credentials by listing the account's devices.
type ConfigFlow struct {
	newClient ClientFactory
	entries   repository.ConfigEntryRepo
	creator   EntryCreator
	schema    *jsonschema.Schema
	log       *logger.Logger
}

func NewConfigFlow(newClient ClientFactory, entries repository.ConfigEntryRepo, creator EntryCreator, log *logger.Logger) (*ConfigFlow, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(userStepSchemaURL, bytes.NewReader(userStepSchema)); err != nil {
		return nil, fmt.Errorf("add user step schema: %w", err)
	}
	schema, err := compiler.Compile(userStepSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile user step schema: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ConfigFlow{
		newClient: newClient,
		entries:   entries,
		creator:   creator,
		schema:    schema,
		log:       log,
	}, nil
}

// ShowForm returns the empty user step.
func (f *ConfigFlow) ShowForm() FlowResult {
	return f.form(nil)
}

func (f *ConfigFlow) form(errs map[string]string) FlowResult {
	return FlowResult{
		Type:   FlowResultForm,
		StepID: FlowStepUser,
		Schema: json.RawMessage(userStepSchema),
		Errors: errs,
	}
}

// StepUser handles a submitted login form. A nil input shows the form.
func (f *ConfigFlow) StepUser(ctx context.Context, input map[string]any) (FlowResult, error) {
	if input == nil {
		return f.ShowForm(), nil
	}
	if err := f.schema.Validate(input); err != nil {
		f.log.Debugw("config_flow_invalid_input", "err", err)
		return f.form(map[string]string{flowErrorKeyBase: errInvalidInput}), nil
	}

	email := strings.TrimSpace(input["email"].(string))
	password := input["password"].(string)

	if f.entries != nil {
		existing, err := f.entries.GetByEmail(ctx, email)
		if err != nil {
			return FlowResult{}, err
		}
		if existing != nil {
			return FlowResult{Type: FlowResultAbort, Reason: abortAlreadyConfig}, nil
		}
	}

	client := f.newClient(email, password)
	devices, err := client.GetDevices(ctx)
	if err != nil {
		f.log.Errorw("config_flow_login_failed", "email", email, "err", err)
		return f.form(map[string]string{flowErrorKeyBase: err.Error()}), nil
	}
	if len(devices) == 0 {
		return f.form(map[string]string{flowErrorKeyBase: errNoDevices}), nil
	}

	access, refresh := client.Tokens()
	entry, err := f.creator.AddEntry(ctx, models.ConfigEntry{
		ID:           uuid.NewString(),
		Title:        email,
		Email:        email,
		Password:     password,
		AccessToken:  access,
		RefreshToken: refresh,
	})
	if err != nil {
		return FlowResult{}, fmt.Errorf("create config entry: %w", err)
	}

	f.log.Infow("config_flow_entry_created", "entry_id", entry.ID, "devices", len(devices))
	return FlowResult{
		Type:  FlowResultCreateEntry,
		Title: entry.Title,
		Entry: &entry,
	}, nil
}
