package jira

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeUnmarshal(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expected      time.Time
		expectedError bool
	}{
		{
			name:     "jira format",
			input:    `"2024-01-15T10:30:00.000+0000"`,
			expected: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:     "rfc3339 fallback",
			input:    `"2024-01-15T10:30:00Z"`,
			expected: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "null",
			input: `null`,
		},
		{
			name:          "garbage",
			input:         `"yesterday"`,
			expectedError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var parsed Time
			err := json.Unmarshal([]byte(tc.input), &parsed)

			if tc.expectedError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tc.expected.IsZero() {
				assert.True(t, parsed.IsZero())
			} else {
				assert.True(t, tc.expected.Equal(parsed.Time))
			}
		})
	}
}

func TestTimeMarshal(t *testing.T) {
	stamp := Time{Time: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
	encoded, err := json.Marshal(stamp)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-15T10:30:00.000+0000"`, string(encoded))

	encoded, err = json.Marshal(Time{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(encoded))
}
