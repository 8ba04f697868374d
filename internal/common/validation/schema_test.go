package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profileSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"queryProfileId": map[string]interface{}{"type": "integer", "minimum": 1},
	},
	"required": []interface{}{"queryProfileId"},
}

func TestSchema_Validate(t *testing.T) {
	s := MustCompile(profileSchema)

	tests := []struct {
		name     string
		document string
		valid    bool
		errField string
		errCode  string
	}{
		{"valid", `{"queryProfileId": 42}`, true, "", ""},
		{"extra process variables allowed", `{"queryProfileId": 42, "requestedBy": "web"}`, true, "", ""},
		{"missing", `{}`, false, "queryProfileId", "REQUIRED"},
		{"zero", `{"queryProfileId": 0}`, false, "queryProfileId", "NUMBER_GTE"},
		{"string", `{"queryProfileId": "42"}`, false, "queryProfileId", "INVALID_TYPE"},
		{"fraction", `{"queryProfileId": 4.5}`, false, "queryProfileId", "INVALID_TYPE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Validate([]byte(tt.document))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.NotEmpty(t, res.Errors)
				assert.True(t, res.HasErrors(tt.errField), res.Summary())
				assert.Equal(t, tt.errCode, res.Errors[0].Code)
				assert.Contains(t, res.Summary(), "queryProfileId")
			}
		})
	}
}

func TestSchema_ValidateMalformedDocument(t *testing.T) {
	_, err := MustCompile(profileSchema).Validate([]byte(`{not json`))
	assert.Error(t, err)
}

func TestSchema_ValidateMap(t *testing.T) {
	res, err := MustCompile(profileSchema).ValidateMap(map[string]interface{}{"queryProfileId": 7})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(map[string]interface{}{"type": 12})
	assert.Error(t, err)
}
