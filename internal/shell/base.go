package shell

import (
	"github.com/ajaxzhan/simos/internal/fs"
)

// DefaultScripts are installed in /usr/bin of a fresh system.
var DefaultScripts = map[string]string{
	"hello": `#!/bin/sh
# Greets whoever runs it.
GREETING="Hello"
echo $GREETING, $USER!
`,
	"sysinfo": `#!/bin/sh
echo Host:
cat /etc/hostname
echo User:
whoami
id
`,
	"backup": `#!/bin/sh
# usage: backup FILE
cp $1 $1.bak
echo saved $1.bak
`,
	"dir": fs.CommandMapping("ls"),
}

// BaseOptions returns the layout of a fresh system: a /bin entry for every
// registered command, the given applications and the default scripts.
func BaseOptions(hostname string, apps map[string]string) fs.BaseOptions {
	return fs.BaseOptions{
		Hostname: hostname,
		Commands: Names(),
		Apps:     apps,
		Scripts:  DefaultScripts,
	}
}
