package compiler

// funcLabel returns the NASM label a user-defined function's body is
// emitted under. The snek_fun_ prefix keeps user names out of the way of
// the error trampolines and our_code_starts_here.
func funcLabel(name string) string {
	return "snek_fun_" + name
}
