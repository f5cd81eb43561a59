// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/pypack/pypack/cmd/pypack"

func main() {
	cmd.Execute()
}
