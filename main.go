// SPDX-License-Identifier: MPL-2.0

package main

import cmd "xtcmod/cmd/xtcmod"

func main() {
	cmd.Execute()
}
