package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
)

// MaxBodyBytes bounds every JSON request body. Asset content never travels through the
// API, only its metadata.
const MaxBodyBytes = 1 << 20

var (
	validate  = newValidator()
	txHashRe  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	errTrails = errors.New("unexpected data after JSON body")
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	// usd_amount: a positive decimal with at most two fractional digits
	_ = v.RegisterValidation("usd_amount", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && d.IsPositive() && d.Equal(d.Truncate(2))
	})
	// tx_hash: a 32-byte hex transaction hash with 0x prefix
	_ = v.RegisterValidation("tx_hash", func(fl validator.FieldLevel) bool {
		return txHashRe.MatchString(fl.Field().String())
	})
	return v
}

// DecodeJSONBody reads a single JSON object into dest, rejecting unknown fields, trailing
// data and bodies over MaxBodyBytes, then runs the struct's validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dest)
	if err == nil && decoder.More() {
		err = errTrails
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.New(pkgerrors.CodeValidation, "request body too large").
				WithDetails(map[string]any{"limitBytes": tooLarge.Limit})
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]any{"error": err.Error()})
	}

	if err := validate.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
		}
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = describe(fe)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

var tagMessages = map[string]string{
	"required":   "is required",
	"uuid":       "must be a uuid",
	"url":        "must be a url",
	"eth_addr":   "must be a hex wallet address",
	"numeric":    "must be a decimal number",
	"usd_amount": "must be a positive amount with at most two decimals",
	"tx_hash":    "must be a 0x-prefixed 32-byte hex hash",
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	if msg, ok := tagMessages[fe.Tag()]; ok {
		return msg
	}
	return "is invalid"
}
