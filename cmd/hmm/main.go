// Command hmm runs the hierarchical memory manager CLI: an interactive
// chat REPL backed by recall, archival, and working-context memory, plus
// a batch ingestion subcommand for loading historical transcripts.
package main

func main() {
	Execute()
}
