package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
)

type mockClassRepo struct {
	classes  map[string]models.Class
	enrolled map[string][]string
	roster   map[string][]models.Student
	deleted  []string
}

func (m *mockClassRepo) Create(ctx context.Context, class *models.Class) error {
	if m.classes == nil {
		m.classes = make(map[string]models.Class)
	}
	if class.ID == "" {
		class.ID = "class-new"
	}
	m.classes[class.ID] = *class
	return nil
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		class := c
		return &class, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) FindByJoinCode(ctx context.Context, joinCode string) (*models.Class, error) {
	for _, c := range m.classes {
		if c.JoinCode == joinCode {
			class := c
			return &class, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) ListByFaculty(ctx context.Context, facultyID string) ([]models.Class, error) {
	var out []models.Class
	for _, c := range m.classes {
		if c.FacultyID == facultyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockClassRepo) ListEnrolled(ctx context.Context, studentID string) ([]models.EnrolledClass, error) {
	var out []models.EnrolledClass
	for classID, students := range m.enrolled {
		for _, s := range students {
			if s == studentID {
				out = append(out, models.EnrolledClass{Class: m.classes[classID]})
			}
		}
	}
	return out, nil
}

func (m *mockClassRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.classes[id]; !ok {
		return false, nil
	}
	delete(m.classes, id)
	m.deleted = append(m.deleted, id)
	return true, nil
}

func (m *mockClassRepo) Enroll(ctx context.Context, classID, studentID string) error {
	if m.enrolled == nil {
		m.enrolled = make(map[string][]string)
	}
	for _, s := range m.enrolled[classID] {
		if s == studentID {
			return nil
		}
	}
	m.enrolled[classID] = append(m.enrolled[classID], studentID)
	return nil
}

func (m *mockClassRepo) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	for _, s := range m.enrolled[classID] {
		if s == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockClassRepo) Roster(ctx context.Context, classID string) ([]models.Student, error) {
	return m.roster[classID], nil
}

func newClassService(repo *mockClassRepo) *ClassService {
	return NewClassService(repo, validator.New(), zap.NewNop())
}

func TestClassServiceCreateGeneratesJoinCode(t *testing.T) {
	repo := &mockClassRepo{}
	svc := newClassService(repo)

	class, err := svc.Create(context.Background(), "fac-1", models.CreateClassRequest{ClassName: "Distributed Systems"})
	require.NoError(t, err)
	assert.Equal(t, "fac-1", class.FacultyID)
	assert.Len(t, class.JoinCode, joinCodeLength)
	for _, r := range class.JoinCode {
		assert.Contains(t, joinCodeAlphabet, string(r))
	}
}

func TestClassServiceJoinByCode(t *testing.T) {
	repo := &mockClassRepo{classes: map[string]models.Class{
		"class-1": {ID: "class-1", Name: "Networks", FacultyID: "fac-1", JoinCode: "ABC234"},
	}}
	svc := newClassService(repo)

	class, err := svc.Join(context.Background(), "stu-1", models.JoinClassRequest{JoinCode: "ABC234"})
	require.NoError(t, err)
	assert.Equal(t, "class-1", class.ID)

	enrolled, err := repo.IsEnrolled(context.Background(), "class-1", "stu-1")
	require.NoError(t, err)
	assert.True(t, enrolled)

	// joining again stays a no-op
	_, err = svc.Join(context.Background(), "stu-1", models.JoinClassRequest{JoinCode: "ABC234"})
	require.NoError(t, err)
	assert.Len(t, repo.enrolled["class-1"], 1)
}

func TestClassServiceJoinUnknownCode(t *testing.T) {
	repo := &mockClassRepo{}
	svc := newClassService(repo)

	_, err := svc.Join(context.Background(), "stu-1", models.JoinClassRequest{JoinCode: "ZZZZZZ"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestClassServiceRosterRequiresOwner(t *testing.T) {
	repo := &mockClassRepo{
		classes: map[string]models.Class{
			"class-1": {ID: "class-1", FacultyID: "fac-1"},
		},
		roster: map[string][]models.Student{
			"class-1": {{UserID: "stu-1", Name: "Alice"}},
		},
	}
	svc := newClassService(repo)

	students, err := svc.Roster(context.Background(), "fac-1", "class-1")
	require.NoError(t, err)
	require.Len(t, students, 1)

	_, err = svc.Roster(context.Background(), "fac-2", "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestClassServiceDelete(t *testing.T) {
	repo := &mockClassRepo{classes: map[string]models.Class{
		"class-1": {ID: "class-1", FacultyID: "fac-1"},
	}}
	svc := newClassService(repo)

	require.NoError(t, svc.Delete(context.Background(), "fac-1", "class-1"))
	assert.Equal(t, []string{"class-1"}, repo.deleted)

	err := svc.Delete(context.Background(), "fac-1", "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
