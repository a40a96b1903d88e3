// Command nfs-mirror exports local directories over NFSv3.
package main

import "github.com/benignx/nfs-mirror/cmd"

func main() {
	cmd.Execute()
}
