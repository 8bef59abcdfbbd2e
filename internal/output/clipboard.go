package output

import "github.com/atotto/clipboard"

// clipboardWriter is swapped out in tests.
var clipboardWriter = clipboard.WriteAll
