package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"audittool/models"
)

func TestMatches_EmptyQueryMatchesEverything(t *testing.T) {
	assert.True(t, Matches(models.AuditPlan{}, ""))
	assert.True(t, Matches(models.AuditPlan{}, "   "))
}

func TestMatches_TopLevelField(t *testing.T) {
	plan := models.AuditPlan{AuditID: "AUD-2024-001", Department: "Finance Account"}

	assert.True(t, Matches(plan, "aud-2024"))
	assert.True(t, Matches(plan, "FINANCE"))
	assert.False(t, Matches(plan, "marketing"))
}

func TestMatches_NestedAndArrayFields(t *testing.T) {
	nc := models.NonConformity{
		NcID:       "NC-20240101-0042",
		NcLocation: []string{"Mumbai", "Pune"},
		ResponsiblePerson: models.ResponsiblePerson{
			Name:  "Asha Rao",
			Email: "asha.rao@onextel.com",
		},
	}

	assert.True(t, Matches(nc, "pune"))
	assert.True(t, Matches(nc, "asha.rao"))
	assert.False(t, Matches(nc, "delhi"))
}

func TestMatches_NumericFields(t *testing.T) {
	type record struct {
		Size int64 `json:"size"`
	}
	assert.True(t, Matches(record{Size: 2048}, "2048"))
	assert.False(t, Matches(record{Size: 2048}, "4096"))
}
