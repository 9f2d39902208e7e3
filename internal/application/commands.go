package application

type AddUserCommand struct {
	Login    string
	Password string
	FullName string
	Color    string
	ImageURL string
}
