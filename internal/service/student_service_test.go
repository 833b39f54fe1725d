package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molinacode/padel-crm-api/internal/models"
)

type mockStudentRepo struct {
	students map[string]*models.Student
	created  []*models.Student
	updated  []*models.Student
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*models.Student)}
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range m.students {
		if filter.Active != nil && s.Active != *filter.Active {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = "stu-new"
	m.created = append(m.created, student)
	m.students[student.ID] = student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.updated = append(m.updated, student)
	m.students[student.ID] = student
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Marta Ruiz"})
	require.NoError(t, err)
	assert.True(t, student.Active)
	assert.Equal(t, "Marta Ruiz", student.FullName)
	assert.Len(t, repo.created, 1)
}

func TestStudentServiceCreateRejectsShortName(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "M"})
	assert.Error(t, err)
}

func TestStudentServiceUpdatePartial(t *testing.T) {
	repo := newMockStudentRepo()
	email := "marta@example.com"
	repo.students["stu-1"] = &models.Student{ID: "stu-1", FullName: "Marta Ruiz", Email: &email, Active: true}
	svc := NewStudentService(repo, nil, nil)

	phone := "600111222"
	student, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{Phone: &phone})
	require.NoError(t, err)

	// untouched fields survive a partial update
	assert.Equal(t, "Marta Ruiz", student.FullName)
	require.NotNil(t, student.Email)
	assert.Equal(t, email, *student.Email)
	require.NotNil(t, student.Phone)
	assert.Equal(t, phone, *student.Phone)
}

func TestStudentServiceDeactivateKeepsRecord(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["stu-1"] = &models.Student{ID: "stu-1", FullName: "Marta Ruiz", Active: true}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Deactivate(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.False(t, student.Active)
	assert.Contains(t, repo.students, "stu-1")
}

func TestStudentServiceGetUnknown(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	assert.Error(t, err)
}
