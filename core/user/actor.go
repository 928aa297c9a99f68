package user

// Kind identifies which role variant an Actor is.
type Kind string

const (
	KindAdmin     Kind = "admin"
	KindTeacher   Kind = "teacher"
	KindLibrarian Kind = "librarian"
	KindStudent   Kind = "student"
)

// Actor is the authenticated User seen through their dominant role.
// The set of implementations is closed: Admin, Teacher, Librarian and Student.
type Actor interface {
	User() User
	Kind() Kind
	// Privileged actors may write to locked records and manage every class.
	Privileged() bool

	actor()
}

type (
	Admin     struct{ usr User }
	Teacher   struct{ usr User }
	Librarian struct{ usr User }
	Student   struct{ usr User }
)

var (
	_ Actor = Admin{}
	_ Actor = Teacher{}
	_ Actor = Librarian{}
	_ Actor = Student{}
)

func (a Admin) User() User       { return a.usr }
func (a Admin) Kind() Kind       { return KindAdmin }
func (a Admin) Privileged() bool { return true }
func (Admin) actor()             {}

func (a Teacher) User() User       { return a.usr }
func (a Teacher) Kind() Kind       { return KindTeacher }
func (a Teacher) Privileged() bool { return false }
func (Teacher) actor()             {}

func (a Librarian) User() User       { return a.usr }
func (a Librarian) Kind() Kind       { return KindLibrarian }
func (a Librarian) Privileged() bool { return false }
func (Librarian) actor()             {}

func (a Student) User() User       { return a.usr }
func (a Student) Kind() Kind       { return KindStudent }
func (a Student) Privileged() bool { return false }
func (Student) actor()             {}

// ActorFor picks the variant of usr's highest-priority role. ok is false when usr has no role.
func ActorFor(usr User) (act Actor, ok bool) {
	switch {
	case usr.IsAdmin():
		return Admin{usr}, true
	case usr.IsTeacher():
		return Teacher{usr}, true
	case usr.IsLibrarian():
		return Librarian{usr}, true
	case usr.IsStudent():
		return Student{usr}, true
	}
	return nil, false
}

// HasKind reports whether act is one of kinds.
func HasKind(act Actor, kinds ...Kind) bool {
	if act == nil {
		return false
	}
	for _, k := range kinds {
		if act.Kind() == k {
			return true
		}
	}
	return false
}
