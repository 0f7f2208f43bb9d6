package cmd

import (
	_ "kairo-keeper/cmd/auth"
	_ "kairo-keeper/cmd/binary"
	_ "kairo-keeper/cmd/root"
	_ "kairo-keeper/cmd/server"
	_ "kairo-keeper/cmd/tunnel"
)
