package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/taskminder-go-api/internal/dto"
	"github.com/noah-isme/taskminder-go-api/internal/models"
	"github.com/noah-isme/taskminder-go-api/internal/repository"
)

// ErrInvalidSettings indicates a settings write that fails validation.
var ErrInvalidSettings = errors.New("invalid settings")

//go:embed schema/settings.schema.json
var settingsSchemaJSON []byte

const settingsSchemaURL = "taskminder://settings.schema.json"

// Preference keys.
const (
	KeyColorScheme           = "color_scheme"
	KeyAnimationIntensity    = "animation_intensity"
	KeyTextSize              = "text_size"
	KeyDateFormat            = "date_format"
	KeyTeachersSortType      = "teachers_sort_type"
	KeyDefaultShowNameFirst  = "default_show_name_first"
	KeyNotificationTime      = "notification_time"
	KeyNotificationSound     = "notification_sound"
	KeyNotificationVibration = "notification_vibration"
	KeyDoNotDisturbEnabled   = "do_not_disturb_enabled"
	KeyDoNotDisturbStart     = "do_not_disturb_start"
	KeyDoNotDisturbEnd       = "do_not_disturb_end"
	KeyUpdateInterval        = "update_interval"
	KeySimplifiedMode        = "simplified_mode"
	KeyIsDarkTheme           = "is_dark_theme"
)

type settingKind int

const (
	kindInt settingKind = iota
	kindFloat
	kindBool
)

type settingDescriptor struct {
	namespace string
	kind      settingKind
}

var settingDescriptors = map[string]settingDescriptor{
	KeyColorScheme:           {models.PreferenceNamespaceSettings, kindInt},
	KeyAnimationIntensity:    {models.PreferenceNamespaceSettings, kindFloat},
	KeyTextSize:              {models.PreferenceNamespaceSettings, kindInt},
	KeyDateFormat:            {models.PreferenceNamespaceSettings, kindInt},
	KeyTeachersSortType:      {models.PreferenceNamespaceSettings, kindInt},
	KeyDefaultShowNameFirst:  {models.PreferenceNamespaceSettings, kindBool},
	KeyNotificationTime:      {models.PreferenceNamespaceSettings, kindInt},
	KeyNotificationSound:     {models.PreferenceNamespaceSettings, kindBool},
	KeyNotificationVibration: {models.PreferenceNamespaceSettings, kindBool},
	KeyDoNotDisturbEnabled:   {models.PreferenceNamespaceSettings, kindBool},
	KeyDoNotDisturbStart:     {models.PreferenceNamespaceSettings, kindInt},
	KeyDoNotDisturbEnd:       {models.PreferenceNamespaceSettings, kindInt},
	KeyUpdateInterval:        {models.PreferenceNamespaceSettings, kindInt},
	KeySimplifiedMode:        {models.PreferenceNamespaceSettings, kindBool},
	KeyIsDarkTheme:           {models.PreferenceNamespaceTheme, kindBool},
}

// SettingsService reads and writes the application preferences.
type SettingsService interface {
	Snapshot(ctx context.Context) dto.AppSettings
	Watch(ctx context.Context) (<-chan dto.AppSettings, error)
	Apply(ctx context.Context, patch []byte) (dto.AppSettings, error)
	Reset(ctx context.Context) (dto.AppSettings, error)

	Int(ctx context.Context, key string) (int, error)
	Float(ctx context.Context, key string) (float64, error)
	Bool(ctx context.Context, key string) (bool, error)
	SetInt(ctx context.Context, key string, value int) error
	SetFloat(ctx context.Context, key string, value float64) error
	SetBool(ctx context.Context, key string, value bool) error
}

type settingsService struct {
	repo   repository.PreferenceRepository
	schema *jsonschema.Schema
	logger zerolog.Logger
}

// NewSettingsService constructs the settings service and compiles its schema.
func NewSettingsService(repo repository.PreferenceRepository, logger zerolog.Logger) (SettingsService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(settingsSchemaURL, bytes.NewReader(settingsSchemaJSON)); err != nil {
		return nil, fmt.Errorf("load settings schema: %w", err)
	}
	schema, err := compiler.Compile(settingsSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile settings schema: %w", err)
	}

	return &settingsService{
		repo:   repo,
		schema: schema,
		logger: logger.With().Str("component", "settings_service").Logger(),
	}, nil
}

// Snapshot never fails: absent or unreadable keys fall back to defaults.
func (s *settingsService) Snapshot(ctx context.Context) dto.AppSettings {
	settings := dto.DefaultAppSettings()

	for _, namespace := range []string{models.PreferenceNamespaceSettings, models.PreferenceNamespaceTheme} {
		values, err := s.repo.All(ctx, namespace)
		if err != nil {
			s.logger.Warn().Err(err).Str("namespace", namespace).Msg("failed to read preferences, using defaults")
			return dto.DefaultAppSettings()
		}
		for key, raw := range values {
			descriptor, ok := settingDescriptors[key]
			if !ok || descriptor.namespace != namespace {
				continue
			}
			if err := assignSetting(&settings, key, raw); err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("ignoring malformed preference")
			}
		}
	}

	return settings
}

func (s *settingsService) Watch(ctx context.Context) (<-chan dto.AppSettings, error) {
	signal, cancel := s.repo.Watch()
	out := make(chan dto.AppSettings, 1)

	go func() {
		defer close(out)
		defer cancel()

		for {
			select {
			case out <- s.Snapshot(ctx):
			case <-ctx.Done():
				return
			}

			select {
			case <-signal:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Apply validates patch against the settings schema and writes every key it
// contains. Nothing is written when validation fails.
func (s *settingsService) Apply(ctx context.Context, patch []byte) (dto.AppSettings, error) {
	values, err := s.validatePatch(patch)
	if err != nil {
		return dto.AppSettings{}, err
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw, err := encodeSetting(key, values[key])
		if err != nil {
			return dto.AppSettings{}, err
		}
		if err := s.repo.Set(ctx, settingDescriptors[key].namespace, key, raw); err != nil {
			return dto.AppSettings{}, fmt.Errorf("write preference %s: %w", key, err)
		}
	}

	if len(keys) > 0 {
		s.logger.Info().Strs("keys", keys).Msg("settings updated")
	}
	return s.Snapshot(ctx), nil
}

func (s *settingsService) Reset(ctx context.Context) (dto.AppSettings, error) {
	for _, namespace := range []string{models.PreferenceNamespaceSettings, models.PreferenceNamespaceTheme} {
		if err := s.repo.Delete(ctx, namespace); err != nil {
			return dto.AppSettings{}, fmt.Errorf("reset %s preferences: %w", namespace, err)
		}
	}
	s.logger.Info().Msg("settings reset to defaults")
	return dto.DefaultAppSettings(), nil
}

func (s *settingsService) Int(ctx context.Context, key string) (int, error) {
	raw, ok, err := s.read(ctx, key, kindInt)
	if err != nil || !ok {
		return defaultInt(key), err
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultInt(key), nil
	}
	return value, nil
}

func (s *settingsService) Float(ctx context.Context, key string) (float64, error) {
	raw, ok, err := s.read(ctx, key, kindFloat)
	if err != nil || !ok {
		return dto.DefaultAppSettings().AnimationIntensity, err
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return dto.DefaultAppSettings().AnimationIntensity, nil
	}
	return value, nil
}

func (s *settingsService) Bool(ctx context.Context, key string) (bool, error) {
	raw, ok, err := s.read(ctx, key, kindBool)
	if err != nil || !ok {
		return defaultBool(key), err
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultBool(key), nil
	}
	return value, nil
}

func (s *settingsService) SetInt(ctx context.Context, key string, value int) error {
	return s.write(ctx, key, kindInt, value)
}

func (s *settingsService) SetFloat(ctx context.Context, key string, value float64) error {
	return s.write(ctx, key, kindFloat, value)
}

func (s *settingsService) SetBool(ctx context.Context, key string, value bool) error {
	return s.write(ctx, key, kindBool, value)
}

func (s *settingsService) read(ctx context.Context, key string, kind settingKind) (string, bool, error) {
	descriptor, err := lookupSetting(key, kind)
	if err != nil {
		return "", false, err
	}
	raw, ok, err := s.repo.Get(ctx, descriptor.namespace, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to read preference, using default")
		return "", false, nil
	}
	return raw, ok, nil
}

func (s *settingsService) write(ctx context.Context, key string, kind settingKind, value interface{}) error {
	if _, err := lookupSetting(key, kind); err != nil {
		return err
	}
	patch, err := json.Marshal(map[string]interface{}{key: value})
	if err != nil {
		return err
	}
	_, err = s.Apply(ctx, patch)
	return err
}

func (s *settingsService) validatePatch(patch []byte) (map[string]interface{}, error) {
	var document interface{}
	decoder := json.NewDecoder(bytes.NewReader(patch))
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.schema.Validate(document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	values, ok := document.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: settings patch must be an object", ErrInvalidSettings)
	}
	return values, nil
}

func lookupSetting(key string, kind settingKind) (settingDescriptor, error) {
	descriptor, ok := settingDescriptors[key]
	if !ok {
		return settingDescriptor{}, fmt.Errorf("%w: unknown key %q", ErrInvalidSettings, key)
	}
	if descriptor.kind != kind {
		return settingDescriptor{}, fmt.Errorf("%w: key %q has a different type", ErrInvalidSettings, key)
	}
	return descriptor, nil
}

func encodeSetting(key string, value interface{}) (string, error) {
	descriptor := settingDescriptors[key]
	switch descriptor.kind {
	case kindBool:
		b, ok := value.(bool)
		if !ok {
			return "", fmt.Errorf("%w: %s must be a boolean", ErrInvalidSettings, key)
		}
		return strconv.FormatBool(b), nil
	case kindInt:
		n, ok := value.(json.Number)
		if !ok {
			return "", fmt.Errorf("%w: %s must be an integer", ErrInvalidSettings, key)
		}
		i, err := n.Int64()
		if err != nil {
			return "", fmt.Errorf("%w: %s must be an integer", ErrInvalidSettings, key)
		}
		return strconv.FormatInt(i, 10), nil
	default:
		n, ok := value.(json.Number)
		if !ok {
			return "", fmt.Errorf("%w: %s must be a number", ErrInvalidSettings, key)
		}
		f, err := n.Float64()
		if err != nil {
			return "", fmt.Errorf("%w: %s must be a number", ErrInvalidSettings, key)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
}

func assignSetting(settings *dto.AppSettings, key, raw string) error {
	switch settingDescriptors[key].kind {
	case kindBool:
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*boolField(settings, key) = value
	case kindInt:
		value, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*intField(settings, key) = value
	case kindFloat:
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		settings.AnimationIntensity = value
	}
	return nil
}

func intField(settings *dto.AppSettings, key string) *int {
	switch key {
	case KeyColorScheme:
		return &settings.ColorScheme
	case KeyTextSize:
		return &settings.TextSize
	case KeyDateFormat:
		return &settings.DateFormat
	case KeyTeachersSortType:
		return &settings.TeachersSortType
	case KeyNotificationTime:
		return &settings.NotificationTime
	case KeyDoNotDisturbStart:
		return &settings.DoNotDisturbStart
	case KeyDoNotDisturbEnd:
		return &settings.DoNotDisturbEnd
	default:
		return &settings.UpdateInterval
	}
}

func boolField(settings *dto.AppSettings, key string) *bool {
	switch key {
	case KeyDefaultShowNameFirst:
		return &settings.DefaultShowNameFirst
	case KeyNotificationSound:
		return &settings.NotificationSound
	case KeyNotificationVibration:
		return &settings.NotificationVibration
	case KeyDoNotDisturbEnabled:
		return &settings.DoNotDisturbEnabled
	case KeySimplifiedMode:
		return &settings.SimplifiedMode
	default:
		return &settings.IsDarkTheme
	}
}

func defaultInt(key string) int {
	defaults := dto.DefaultAppSettings()
	if descriptor, ok := settingDescriptors[key]; !ok || descriptor.kind != kindInt {
		return 0
	}
	return *intField(&defaults, key)
}

func defaultBool(key string) bool {
	defaults := dto.DefaultAppSettings()
	if descriptor, ok := settingDescriptors[key]; !ok || descriptor.kind != kindBool {
		return false
	}
	return *boolField(&defaults, key)
}
