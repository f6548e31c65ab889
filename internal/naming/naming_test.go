package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluralize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "companies", Pluralize("company"))
	assert.Equal(t, "users", Pluralize("user"))
	assert.Equal(t, "people", Pluralize("person"))
	assert.Equal(t, "houses", Pluralize("house"))
}

func TestSingularize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "company", Singularize("companies"))
	assert.Equal(t, "user", Singularize("users"))
	assert.Equal(t, "person", Singularize("people"))
}

func TestSnake(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "user_profile", Snake("UserProfile"))
	assert.Equal(t, "user", Snake("User"))
}

func TestCamel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "UserProfile", Camel("user_profile"))
}

func TestTableFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "users", TableFor("User"))
	assert.Equal(t, "user_profiles", TableFor("UserProfile"))
	assert.Equal(t, "companies", TableFor("Company"))
}

func TestPivotTable(t *testing.T) {
	t.Parallel()

	// Singular forms joined in lexicographic order.
	assert.Equal(t, "house_person", PivotTable("houses", "persons"))
	assert.Equal(t, "house_person", PivotTable("persons", "houses"))
	assert.Equal(t, "product_store", PivotTable("stores", "products"))
}

func TestForeignKeyFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "user_id", ForeignKeyFor("User"))
	assert.Equal(t, "user_profile_id", ForeignKeyFor("UserProfile"))
}

func TestHumanize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Create Users Table", Humanize("2026_01_01_000000_create_users_table"))
	assert.Equal(t, "Add Email To Users", Humanize("add_email_to_users"))
}
