// Copyright (C) 2021 the ml-meteorology authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"bufio"
	"fmt"
	"os"
)

// Singleton log writer. Writes to stdout, and optionally to a file.
// Does not add prefixes, or force newlines.

// The optional additional file to log into
var logFile   *bufio.Writer
var logFileOS *os.File

// A writer teeing into stdout and the optional log file, for handing to
// pipeline components
type teeWriter struct{}

func (teeWriter) Write(p []byte) (int, error) {
	n, err:=os.Stdout.Write(p)
	if err!=nil || logFile==nil { return n, err }
	return logFile.Write(p)
}

// Enables logging to file
func logAlsoToFile(fileName string) (err error) {
	if logFile!=nil {
		err=logFile.Flush()
		if err!=nil { return err }
		err=logFileOS.Close()
		if err!=nil { return err }
	}
	logFileOS, err = os.OpenFile(fileName, os.O_CREATE | os.O_TRUNC | os.O_WRONLY, 0666)
	if err!=nil { return err }
	logFile=bufio.NewWriter(logFileOS)
	return nil
}

func logPrintf(format string, args ...interface{}) (n int, err error) {
	n, err=fmt.Printf(format, args...)
	if err!=nil || logFile==nil { return n, err }
	return fmt.Fprintf(logFile, format, args...)
}

func logFatalf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
	if logFile!=nil {
		logFile.Flush()
		logFileOS.Close()
	}
	os.Exit(1)
}

func logSync() {
	if logFile==nil { return }
	logFile.Flush()
	logFileOS.Sync()
}
