package nfs

import "strings"

// debugFlag is a bitset of wire/session debug-logging topics, parsed
// from the nfs.debug_flags configuration list. Flags only add detail on
// top of the global log level; they never change what is an error.
type debugFlag uint32

const (
	debugRXData debugFlag = 1 << iota
	debugTXData
	debugDumpData
	debugSearch
	debugInfo
	debugFile
	debugFileIO
	debugError
	debugTiming
	debugDirectory
	debugSession
)

var debugFlagNames = map[string]debugFlag{
	"RXDATA":    debugRXData,
	"TXDATA":    debugTXData,
	"DUMPDATA":  debugDumpData,
	"SEARCH":    debugSearch,
	"INFO":      debugInfo,
	"FILE":      debugFile,
	"FILEIO":    debugFileIO,
	"ERROR":     debugError,
	"TIMING":    debugTiming,
	"DIRECTORY": debugDirectory,
	"SESSION":   debugSession,
}

// parseDebugFlags folds a list of topic names into a bitset. Unknown
// names are ignored here; pkg/config already validates them.
func parseDebugFlags(names []string) debugFlag {
	var out debugFlag
	for _, name := range names {
		if f, ok := debugFlagNames[strings.ToUpper(name)]; ok {
			out |= f
		}
	}
	return out
}

func (f debugFlag) has(flag debugFlag) bool { return f&flag != 0 }
