// Command glimpsectl culls photo folders from the terminal.
//
// It drives the same library as the glimpse server, in-process, against the
// same data directory. Only one of them can use a data directory at a time.
//
//	glimpsectl open ~/Pictures/shoot      # scan and generate thumbnails
//	glimpsectl label ~/Pictures/shoot DSC_0042.NEF rejected
//	glimpsectl export ~/Pictures/shoot ~/Pictures/keep --mode copy
package main
