package validator

import (
	"context"
	"fmt"
	"os"
	"sync"

	"fraud-advisor/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// OpenAPIValidator validates requests against an OpenAPI document
type OpenAPIValidator struct {
	doc        *openapi3.T
	router     routers.Router
	schemaPath string
	mutex      sync.RWMutex
}

// NewOpenAPIValidator loads the document from disk
func NewOpenAPIValidator(schemaPath string) (*OpenAPIValidator, error) {
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema from %s: %w", schemaPath, err)
	}
	v, err := NewOpenAPIValidatorFromData(data)
	if err != nil {
		return nil, err
	}
	v.schemaPath = schemaPath
	return v, nil
}

// NewOpenAPIValidatorFromData builds a validator from an in-memory document
func NewOpenAPIValidatorFromData(data []byte) (*OpenAPIValidator, error) {
	doc, router, err := load(data)
	if err != nil {
		return nil, err
	}
	return &OpenAPIValidator{doc: doc, router: router}, nil
}

func load(data []byte) (*openapi3.T, routers.Router, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse OpenAPI schema: %w", err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}
	return doc, router, nil
}

// ReloadSchema reloads the OpenAPI schema from disk
func (v *OpenAPIValidator) ReloadSchema() error {
	if v.schemaPath == "" {
		return nil
	}
	data, err := os.ReadFile(v.schemaPath)
	if err != nil {
		return err
	}
	doc, router, err := load(data)
	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.doc = doc
	v.router = router
	return nil
}

// Middleware rejects requests that do not match the document with 400 VALIDATION_ERROR.
// Routes the document does not describe pass through untouched.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v.mutex.RLock()
		router := v.router
		v.mutex.RUnlock()

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				MultiError:         false,
			},
		}

		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.Error(errors.NewBadRequestError("VALIDATION_ERROR", "Request does not match the API schema").
				WithDetails(summarize(err)))
			c.Abort()
			return
		}

		c.Next()
	}
}

// summarize keeps the client-facing part of a kin-openapi error
func summarize(err error) string {
	switch e := err.(type) {
	case *openapi3filter.RequestError:
		if e.Parameter != nil {
			return fmt.Sprintf("parameter %q: %s", e.Parameter.Name, e.Reason)
		}
		if e.RequestBody != nil {
			if se, ok := e.Err.(*openapi3.SchemaError); ok {
				return fmt.Sprintf("body: %s", se.Reason)
			}
			return "body: " + e.Reason
		}
		return e.Reason
	case *openapi3filter.SecurityRequirementsError:
		return "security requirements not met"
	}
	return "invalid request"
}
