package main

import (
	"flag"
	"fmt"
	"os"
)

const usage = `phrasecurator curates charades phrases.

Usage:
  phrasecurator <command> [flags] [args]

Commands:
  migrate                       Apply schema migrations and seed default categories
  import <file.json>            Ingest candidate phrases
  check <category> <phrase>     Check one candidate without storing it
  score <category> <phrase>     Score one phrase
  rescore                       Recompute stored scores
  report                        Duplicate and first-word report
  quota status|set|bulk|recommend
  recency stats|detect|mark|recommend
  export                        Write a game file
  validate <file.json>          Validate a game file
  rank <file>                   Rank phrases by Wikipedia prominence
  pmi <counts.csv> [phrase...]  Rank multi-word phrases by n-gram cohesion
  search <query>                Search the phrase corpus
  watch <dir>                   Import candidate files dropped into dir
  bloom rebuild|refresh|stats   Manage duplicate prefilters
  cache purge|stats             Manage the score cache

Run 'phrasecurator <command> -h' for command flags.
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	handleSubcommand(flag.Arg(0), flag.Args()[1:])
}
