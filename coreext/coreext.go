package coreext

import (
	// importing for side effects
	_ "github.com/petrel-lang/petrel/coreext/collector"
	_ "github.com/petrel-lang/petrel/coreext/ctypes"
	_ "github.com/petrel-lang/petrel/coreext/hashing"
	_ "github.com/petrel-lang/petrel/coreext/mmap"
	_ "github.com/petrel-lang/petrel/coreext/typing"
)
