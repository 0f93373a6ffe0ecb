package main

import (
  "encoding/json"
  "fmt"
  "io/ioutil"
  "os"

  "github.com/dustin/go-humanize"
  "github.com/kwf2030/apkres/apk"
  "github.com/kwf2030/apkres/base"
  "github.com/kwf2030/apkres/policy"
  "github.com/kwf2030/apkres/rebuild"
  "github.com/spf13/cobra"
)

var logLevel string

func main() {
  rootCmd := &cobra.Command{
    Use:   "apkres",
    Short: "Rename and rebuild the resources of an apk",
    PersistentPreRun: func(_ *cobra.Command, _ []string) {
      base.SetLogLevel(logLevel)
    },
    SilenceUsage:  true,
    SilenceErrors: true,
  }
  rootCmd.PersistentFlags().StringVarP(&logLevel, "log", "l", "warn", "log level: debug, info, warn, error")

  rootCmd.AddCommand(rebuildCmd())
  rootCmd.AddCommand(dumpCmd())
  rootCmd.AddCommand(mappingCmd())

  if e := rootCmd.Execute(); e != nil {
    fmt.Fprintf(os.Stderr, "Error: %v\n", e)
    os.Exit(1)
  }
}

func rebuildCmd() *cobra.Command {
  opts := rebuild.Options{}
  cmd := &cobra.Command{
    Use:   "rebuild <apk>",
    Short: "Rename resources and write the rebuilt tree",
    Args:  cobra.ExactArgs(1),
    RunE: func(_ *cobra.Command, args []string) error {
      opts.Input = args[0]
      r, e := rebuild.New(opts).Run()
      if e != nil {
        return e
      }
      fmt.Fprintf(os.Stdout, "%s: %d entries, %d renamed, %d files moved, %d loose files\n",
        r.Name, r.Entries, r.Renamed, r.Files, r.Loose)
      if r.MappingPath != "" {
        fmt.Fprintf(os.Stdout, "mapping: %s\n", r.MappingPath)
      }
      if r.ZipPath != "" {
        fmt.Fprintf(os.Stdout, "archive: %s\n", r.ZipPath)
      }
      for _, w := range r.Warnings {
        fmt.Fprintf(os.Stderr, "warning: %s\n", w)
      }
      return nil
    },
  }
  f := cmd.Flags()
  f.StringVarP(&opts.OutDir, "out", "o", "out", "output directory")
  f.StringVarP(&opts.RulesPath, "config", "c", "", "rules document (yaml or json)")
  f.StringVarP(&opts.MappingPath, "mapping", "m", "", "prior mapping document")
  f.StringVar(&opts.StorePath, "store", "", "mapping store, used when no mapping document is given")
  f.StringVar(&opts.Locale, "locale", "", "preferred locale when resolving manifest references")
  f.BoolVar(&opts.Zip, "zip", false, "also write an unsigned apk")
  return cmd
}

func dumpCmd() *cobra.Command {
  var meta bool
  cmd := &cobra.Command{
    Use:   "dump <apk|xml> [entry]",
    Short: "Print a compiled xml document as text",
    Args:  cobra.RangeArgs(1, 2),
    RunE: func(_ *cobra.Command, args []string) error {
      entry := "AndroidManifest.xml"
      if len(args) == 2 {
        entry = args[1]
      }
      data, table, e := load(args[0], entry)
      if e != nil {
        return e
      }
      if meta {
        d := apk.NewDecoder(table)
        events, e := d.Decode(data)
        if e != nil {
          return e
        }
        m := &apk.ManifestMeta{}
        apk.Broadcast(events, m)
        b, e := json.MarshalIndent(m, "", "  ")
        if e != nil {
          return e
        }
        fmt.Fprintln(os.Stdout, string(b))
        return nil
      }
      text, warnings, e := apk.DecodeXmlText(data, table)
      if e != nil {
        return e
      }
      fmt.Fprint(os.Stdout, text)
      for _, w := range warnings {
        fmt.Fprintf(os.Stderr, "warning: %s\n", w)
      }
      return nil
    },
  }
  cmd.Flags().BoolVar(&meta, "meta", false, "print manifest facts as json instead of xml")
  return cmd
}

// load returns the entry and the resource table of an apk, or the file itself when it is not a zip.
func load(path, entry string) ([]byte, *apk.Table, error) {
  c, e := rebuild.OpenZip(path)
  if e != nil {
    data, e := ioutil.ReadFile(path)
    return data, nil, e
  }
  defer c.Close()
  data, e := readEntry(c, entry)
  if e != nil {
    return nil, nil, e
  }
  raw, e := readEntry(c, "resources.arsc")
  if base.IsKind(e, base.KindMissingEntry) {
    return data, nil, nil
  }
  if e != nil {
    return nil, nil, e
  }
  table, e := apk.ParseTable(raw)
  if e != nil {
    return nil, nil, e
  }
  base.Logger().Info().
    Int("packages", len(table.Packages)).
    Int("locales", len(table.Locales())).
    Str("size", humanize.Bytes(uint64(len(raw)))).
    Msg("table loaded")
  return data, table, nil
}

func readEntry(c rebuild.Container, name string) ([]byte, error) {
  r, e := c.Open(name)
  if e != nil {
    return nil, e
  }
  defer r.Close()
  return ioutil.ReadAll(r)
}

func mappingCmd() *cobra.Command {
  return &cobra.Command{
    Use:   "mapping <file>",
    Short: "Validate a prior mapping document",
    Args:  cobra.ExactArgs(1),
    RunE: func(_ *cobra.Command, args []string) error {
      f, e := os.Open(args[0])
      if e != nil {
        return e
      }
      defer f.Close()
      m, e := policy.ParseMapping(f)
      if e != nil {
        return e
      }
      res, files := m.Len()
      fmt.Fprintf(os.Stdout, "%s: %s resources, %s files\n", args[0], humanize.Comma(int64(res)), humanize.Comma(int64(files)))
      return nil
    },
  }
}
