package fixturepool

import "time"

// Fixture kind names declared by DefaultKinds.
const (
	KindAdminAccount   = "admin-account"
	KindTeacherAccount = "teacher-account"
	KindStudentAccount = "student-account"
	KindEditorAccount  = "editor-account"
	KindCourse         = "course"
	KindArticle        = "article"
	KindEvent          = "event"
)

// Account roles used by the default account pools.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleEditor  = "editor"
)

// Fixture is a pooled domain object. Identity is immutable after creation;
// everything else is mutable scenario state that the kind's cleanup function
// restores before reuse.
type Fixture interface {
	// FixtureID returns the fixture's immutable identifier.
	FixtureID() string

	// FixtureKind returns the name of the pool this fixture belongs to.
	FixtureKind() string
}

// Account is a pooled user account of a single role.
type Account struct {
	ID       string
	Role     string
	Email    string
	Password string
}

func (a *Account) FixtureID() string   { return a.ID }
func (a *Account) FixtureKind() string { return a.Role + "-account" }

// Course is a pooled published course. Enrollments accumulate during a
// scenario and are cleared on release.
type Course struct {
	ID          string
	Name        string
	OwnerID     string
	Published   bool
	Enrollments []string
}

func (c *Course) FixtureID() string   { return c.ID }
func (c *Course) FixtureKind() string { return KindCourse }

// Article is a pooled published news article.
type Article struct {
	ID        string
	Title     string
	Body      string
	Published bool
}

func (a *Article) FixtureID() string   { return a.ID }
func (a *Article) FixtureKind() string { return KindArticle }

// Event is a pooled calendar event. The attendee list is scenario state and
// is emptied on release.
type Event struct {
	ID        string
	Title     string
	StartsAt  time.Time
	Attendees []string
}

func (e *Event) FixtureID() string   { return e.ID }
func (e *Event) FixtureKind() string { return KindEvent }
