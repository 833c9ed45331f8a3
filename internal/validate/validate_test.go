package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/model"
)

func validVolunteer() model.Volunteer {
	return model.Volunteer{
		Name:        "Asha Rao",
		Age:         24,
		Email:       "asha@example.org",
		Phone:       "9876543210",
		Description: "Weekend teacher",
		Location:    "Pune",
		Pincode:     "411001",
	}
}

func TestStruct_ValidVolunteer(t *testing.T) {
	v := New()
	assert.NoError(t, v.Struct(validVolunteer()))
}

func TestStruct_ReportsJSONFieldName(t *testing.T) {
	v := New()

	cases := []struct {
		name   string
		mutate func(*model.Volunteer)
		field  string
	}{
		{"blank name", func(m *model.Volunteer) { m.Name = "   " }, "name"},
		{"bad email", func(m *model.Volunteer) { m.Email = "not-an-email" }, "email"},
		{"short phone", func(m *model.Volunteer) { m.Phone = "12345" }, "phone"},
		{"short pincode", func(m *model.Volunteer) { m.Pincode = "411" }, "pincode"},
		{"negative age", func(m *model.Volunteer) { m.Age = -1 }, "age"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vol := validVolunteer()
			tc.mutate(&vol)

			err := v.Struct(vol)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tc.field, appErr.Field)
			assert.NotEmpty(t, appErr.Message)
		})
	}
}

func TestStruct_RoleTag(t *testing.T) {
	v := New()

	type form struct {
		Role model.Role `json:"role" validate:"role"`
	}

	assert.NoError(t, v.Struct(form{Role: model.RoleAdmin}))
	assert.NoError(t, v.Struct(form{Role: model.RoleVolunteer}))

	err := v.Struct(form{Role: "superuser"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin or volunteer")
}

func TestVar(t *testing.T) {
	v := New()

	assert.NoError(t, v.Var("email", "a@x.com", "required,email"))

	err := v.Var("email", "nope", "required,email")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
