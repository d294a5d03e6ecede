package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/Huy0211/DPA01-project/internal/transformer"
)

// Severity grades a configuration issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding of ValidatePipeline. Path uses the document's field
// names, e.g. "storage.db.staging_table".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// identPattern accepts unquoted SQL identifiers, optionally schema-qualified.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

var (
	validateOnce sync.Once
	structValid  *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		if err := v.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
			return identPattern.MatchString(fl.Field().String())
		}); err != nil {
			panic(err)
		}
		structValid = v
	})
	return structValid
}

// ValidatePipeline checks p after ApplyDefaults. It reports struct-tag
// violations first, then semantic problems the tags cannot express.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if err := structValidator().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []Issue{{Severity: SeverityError, Path: "", Message: err.Error()}}
		}
		for _, fe := range verrs {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fieldPath(fe.Namespace()),
				Message:  tagMessage(fe),
			})
		}
	}

	db := p.Storage.DB
	tables := map[string]string{
		"storage.db.staging_table":     db.StagingTable,
		"storage.db.transformed_table": db.TransformedTable,
		"storage.db.warehouse_table":   db.WarehouseTable,
		"storage.db.encodings_table":   db.EncodingsTable,
	}
	seen := map[string]string{}
	for _, path := range []string{
		"storage.db.staging_table", "storage.db.transformed_table",
		"storage.db.warehouse_table", "storage.db.encodings_table",
	} {
		name := strings.ToLower(tables[path])
		if name == "" {
			continue
		}
		if first, dup := seen[name]; dup {
			issues = append(issues, Issue{SeverityError, path, fmt.Sprintf("table %q already used by %s", tables[path], first)})
			continue
		}
		seen[name] = path
	}

	kinds := map[string]int{}
	for i, t := range p.Transform {
		kinds[t.Kind]++
		if kinds[t.Kind] == 2 {
			issues = append(issues, Issue{SeverityWarning, fmt.Sprintf("transform[%d]", i), fmt.Sprintf("duplicate %q transform; only the first is used", t.Kind)})
		}
	}

	if _, err := p.Contract(); err != nil {
		issues = append(issues, Issue{SeverityError, "transform.validate.options.contract", err.Error()})
	}
	if types, ok := p.CoerceTypes(); ok {
		if len(types) == 0 {
			issues = append(issues, Issue{SeverityWarning, "transform.coerce.options.types", "empty; numeric columns will stay text and fail validation"})
		} else if _, err := transformer.ParseCoerceSpec(types); err != nil {
			issues = append(issues, Issue{SeverityError, "transform.coerce.options.types", err.Error()})
		}
	}

	if p.Storage.Kind == "mssql" && p.Runtime.BatchSize > 2000 {
		issues = append(issues, Issue{SeverityWarning, "runtime.batch_size", "sqlserver caps statements at 2100 parameters; rows per insert will be reduced"})
	}

	return issues
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "ident":
		return fmt.Sprintf("%q is not a valid table name", fmt.Sprint(fe.Value()))
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
