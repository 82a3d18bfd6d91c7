package drafting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/platform/llm"
)

// Top-level keys every model response must carry
var requiredKeys = []string{
	"operations",
	"summary",
	"accounts_to_create",
	"categories_to_create",
	"counterparties",
	"warnings",
}

var requiredOperationFields = []string{"date", "amount", "type", "account"}

// Model-facing operation types; commission is stored as fee
const (
	rawTypeIncome     = "income"
	rawTypeExpense    = "expense"
	rawTypeTransfer   = "transfer"
	rawTypeCommission = "commission"
)

// ErrContractViolation is a well-formed JSON response that breaks the draft schema
type ErrContractViolation struct {
	Violations  []string
	RawResponse string
}

func (e ErrContractViolation) Error() string {
	return "LLM response violates the draft contract: " + strings.Join(e.Violations, "; ")
}

// RawLLMResponse is the decoded top level of a model response before validation
type RawLLMResponse map[string]json.RawMessage

// wirePayload mirrors draft.ValidatedPayload plus fields that only exist on the wire
type wirePayload struct {
	draft.ValidatedPayload
	Notes []string `json:"notes,omitempty"`
}

// ParseResponse decodes model output and validates it against the draft contract.
// Undecodable output is an llm.ErrLLM; schema violations are ErrContractViolation.
func ParseResponse(raw string) (*draft.ValidatedPayload, error) {
	cleaned := llm.StripCodeFences(raw)
	if !json.Valid([]byte(cleaned)) {
		return nil, llm.InvalidJSON(raw)
	}

	var top RawLLMResponse
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil || top == nil {
		return nil, ErrContractViolation{Violations: []string{"response must be a JSON object"}, RawResponse: raw}
	}

	if violations := ValidateContract(top); len(violations) > 0 {
		return nil, ErrContractViolation{Violations: violations, RawResponse: raw}
	}

	var wire wirePayload
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, ErrContractViolation{
			Violations:  []string{fmt.Sprintf("response does not match schema: %v", err)},
			RawResponse: raw,
		}
	}

	payload := wire.ValidatedPayload
	for i := range payload.Operations {
		payload.Operations[i].Type = canonicalType(string(payload.Operations[i].Type))
	}
	payload.Warnings = append(payload.Warnings, wire.Notes...)
	if payload.Warnings == nil {
		payload.Warnings = []string{}
	}
	return &payload, nil
}

// ValidateContract lists every schema violation of a decoded response
func ValidateContract(top RawLLMResponse) []string {
	var violations []string
	for _, key := range requiredKeys {
		if _, ok := top[key]; !ok {
			violations = append(violations, "missing required key: "+key)
		}
	}

	for _, key := range []string{"accounts_to_create", "categories_to_create", "counterparties", "warnings"} {
		if value, ok := top[key]; ok && !isArray(value) {
			violations = append(violations, key+" must be a list")
		}
	}
	if value, ok := top["summary"]; ok && !isObject(value) && !isNull(value) {
		violations = append(violations, "summary must be an object")
	}

	value, ok := top["operations"]
	if !ok {
		return violations
	}
	var operations []json.RawMessage
	if !isArray(value) || json.Unmarshal(value, &operations) != nil {
		return append(violations, "operations must be a list")
	}
	if len(operations) == 0 {
		return append(violations, "operations cannot be empty")
	}

	for i, rawOp := range operations {
		var op map[string]json.RawMessage
		if !isObject(rawOp) || json.Unmarshal(rawOp, &op) != nil {
			violations = append(violations, fmt.Sprintf("operations[%d] must be an object", i))
			continue
		}
		for _, field := range requiredOperationFields {
			if isEmpty(op[field]) {
				violations = append(violations, fmt.Sprintf("operations[%d].%s is required", i, field))
			}
		}
		if rawType, ok := op["type"]; ok && !isEmpty(rawType) {
			var typ string
			if json.Unmarshal(rawType, &typ) != nil || !knownRawType(typ) {
				violations = append(violations, fmt.Sprintf(
					"operations[%d].type must be one of income, expense, transfer, commission", i))
			}
		}
		for _, field := range []string{"date", "account"} {
			if v, ok := op[field]; ok && !isEmpty(v) && !isString(v) {
				violations = append(violations, fmt.Sprintf("operations[%d].%s must be a string", i, field))
			}
		}
	}
	return violations
}

func knownRawType(typ string) bool {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case rawTypeIncome, rawTypeExpense, rawTypeTransfer, rawTypeCommission:
		return true
	}
	return false
}

// canonicalType maps the model vocabulary onto draft.OperationType
func canonicalType(raw string) draft.OperationType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case rawTypeIncome:
		return draft.OperationIncome
	case rawTypeExpense:
		return draft.OperationExpense
	case rawTypeTransfer:
		return draft.OperationTransfer
	case rawTypeCommission:
		return draft.OperationFee
	}
	return draft.OperationType(raw)
}

func isEmpty(v json.RawMessage) bool {
	s := string(bytes.TrimSpace(v))
	switch s {
	case "", "null", `""`, "[]", "{}":
		return true
	}
	if isString(v) {
		var str string
		return json.Unmarshal(v, &str) == nil && strings.TrimSpace(str) == ""
	}
	return false
}

func firstByte(v json.RawMessage) byte {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

func isArray(v json.RawMessage) bool  { return firstByte(v) == '[' }
func isObject(v json.RawMessage) bool { return firstByte(v) == '{' }
func isString(v json.RawMessage) bool { return firstByte(v) == '"' }
func isNull(v json.RawMessage) bool   { return string(bytes.TrimSpace(v)) == "null" }
