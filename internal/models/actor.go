package models

// Actor is the resolved caller of a lesson operation. The set of variants is
// closed: TeacherActor, StudentActor, TutorActor and AdminActor.
type Actor interface {
	ActorID() string
	ActorRole() UserRole
	isActor()
}

// TeacherActor owns the lessons they teach.
type TeacherActor struct {
	ID string
}

// StudentActor attends lessons.
type StudentActor struct {
	ID string
}

// TutorActor manages a set of students.
type TutorActor struct {
	ID                string
	ManagedStudentIDs []string
}

// AdminActor has unrestricted read access.
type AdminActor struct {
	ID   string
	Role UserRole
}

func (a TeacherActor) ActorID() string     { return a.ID }
func (a TeacherActor) ActorRole() UserRole { return RoleTeacher }
func (TeacherActor) isActor()              {}

func (a StudentActor) ActorID() string     { return a.ID }
func (a StudentActor) ActorRole() UserRole { return RoleStudent }
func (StudentActor) isActor()              {}

func (a TutorActor) ActorID() string     { return a.ID }
func (a TutorActor) ActorRole() UserRole { return RoleTutor }
func (TutorActor) isActor()              {}

// Manages reports whether the tutor has an active relationship with studentID.
func (a TutorActor) Manages(studentID string) bool {
	for _, id := range a.ManagedStudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

func (a AdminActor) ActorID() string { return a.ID }
func (a AdminActor) ActorRole() UserRole {
	if a.Role == "" {
		return RoleAdmin
	}
	return a.Role
}
func (AdminActor) isActor() {}
