// Пакет openapi — встроенный OpenAPI контракт Admin Gateway
// и проверка тела запроса по его схемам (kin-openapi).
package openapi

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var contractYAML []byte

// Validator проверяет JSON-значения по схемам контракта.
type Validator struct {
	doc *openapi3.T
}

// NewValidator загружает и валидирует встроенный контракт.
func NewValidator(ctx context.Context) (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(contractYAML)
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI контракта: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("невалидный OpenAPI контракт: %w", err)
	}
	return &Validator{doc: doc}, nil
}

// ValidateSchema проверяет value (результат json.Unmarshal в any)
// по компоненту схемы name. Возвращает ошибку с кратким описанием поля.
func (v *Validator) ValidateSchema(name string, value any) error {
	ref, ok := v.doc.Components.Schemas[name]
	if !ok || ref.Value == nil {
		return fmt.Errorf("схема %s не найдена", name)
	}

	if err := ref.Value.VisitJSON(value); err != nil {
		var schemaErr *openapi3.SchemaError
		if errors.As(err, &schemaErr) {
			if field := schemaErr.JSONPointer(); len(field) > 0 {
				return fmt.Errorf("%s: %s", strings.Join(field, "."), schemaErr.Reason)
			}
			return errors.New(schemaErr.Reason)
		}
		return err
	}
	return nil
}

// Handler отдаёт контракт как application/yaml.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(contractYAML)
	})
}
