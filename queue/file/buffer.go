package file

import "sync"

var scratchPool = &sync.Pool{
	New: func() interface{} {
		return make([]byte, headSize)
	},
}
