// The main package for the catalogsite executable.
package main

import "github.com/JakeFAU/adhesive-catalog/cmd"

func main() {
	cmd.Execute()
}
