package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ddbj/dblinkd/internal/datesource"
	"github.com/ddbj/dblinkd/internal/es"
	"github.com/ddbj/dblinkd/internal/splitter"
	"github.com/spf13/cobra"
)

var checkExternalResourcesCmd = &cobra.Command{
	Use:   "check_external_resources",
	Short: "Probe POSTGRES_URL, ES_URL, and the assembly-summary URL before a run starts",
	RunE:  runCheckExternalResources,
}

func runCheckExternalResources(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, "check_external_resources")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var stepErr error
	if cfg.PostgresURL != "" {
		client, derr := datesource.Connect(ctx, cfg.PostgresURL)
		if derr != nil {
			stepErr = logr.Critical("POSTGRES_URL unreachable", derr)
		} else {
			client.Close()
			logr.Info("POSTGRES_URL reachable")
		}
	} else {
		logr.Warning("POSTGRES_URL not configured")
	}

	if stepErr == nil && cfg.ESURL != "" {
		if _, eerr := es.Connect(cfg.ESURL); eerr != nil {
			stepErr = logr.Critical("ES_URL unreachable", eerr)
		} else {
			logr.Info("ES_URL reachable")
		}
	} else if cfg.ESURL == "" {
		logr.Warning("ES_URL not configured")
	}

	if stepErr == nil {
		if herr := probeHEAD(ctx, cfg.Sources.AssemblySummaryURL); herr != nil {
			stepErr = logr.Critical("assembly summary URL unreachable", herr)
		} else {
			logr.Info("assembly summary URL reachable")
		}
	}

	return finishRun(logr, stepErr)
}

func probeHEAD(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

var prepareBioProjectXMLInput string

var prepareBioProjectXMLCmd = &cobra.Command{
	Use:   "prepare_bioproject_xml",
	Short: "Shard the daily BioProject XML dump into fixed-size worker shards",
	RunE:  runPrepareBioProjectXML,
}

func runPrepareBioProjectXML(cmd *cobra.Command, args []string) error {
	return runPrepare("prepare_bioproject_xml", "bp", "BioProject", prepareBioProjectXMLInput)
}

var prepareBioSampleXMLInput string

var prepareBioSampleXMLCmd = &cobra.Command{
	Use:   "prepare_biosample_xml",
	Short: "Shard the daily BioSample XML dump into fixed-size worker shards",
	RunE:  runPrepareBioSampleXML,
}

func runPrepareBioSampleXML(cmd *cobra.Command, args []string) error {
	return runPrepare("prepare_biosample_xml", "bs", "BioSample", prepareBioSampleXMLInput)
}

func init() {
	prepareBioProjectXMLCmd.Flags().StringVar(&prepareBioProjectXMLInput, "input", "", "Path to the daily bioproject.xml(.gz) dump")
	prepareBioProjectXMLCmd.MarkFlagRequired("input")

	prepareBioSampleXMLCmd.Flags().StringVar(&prepareBioSampleXMLInput, "input", "", "Path to the daily biosample_set.xml(.gz) dump")
	prepareBioSampleXMLCmd.MarkFlagRequired("input")
}

// runPrepare is prepare_bioproject_xml/prepare_biosample_xml's shared body:
// both steps are splitter.Split over a different record tag and output
// subdirectory (spec 4.2).
func runPrepare(stepName, family, recordTag, inputPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := stepPaths(cfg)
	logr, err := openRun(p, stepName)
	if err != nil {
		return err
	}

	var stepErr error
	f, ferr := os.Open(inputPath)
	if ferr != nil {
		stepErr = logr.Critical("cannot open input file", ferr)
	} else {
		defer f.Close()
		shards, records, serr := splitter.Split(f, inputPath, splitter.Options{
			RecordTag: recordTag,
			ShardSize: cfg.Splitter.ShardSize,
			OutDir:    p.TmpXMLDir(family),
		})
		if serr != nil {
			stepErr = logr.Critical("split failed", serr)
		} else {
			logr.Info(fmt.Sprintf("wrote %d shards, %d records", shards, records))
		}
	}

	return finishRun(logr, stepErr)
}
