package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/retrace-sim/retrace/replay"
	"github.com/retrace-sim/retrace/replay/machine"
)

var (
	editsPath     string        // Edit log YAML to apply before querying
	saveEditsPath string        // Where to write the edit log after mutations
	frameList     []int64       // Frames to materialize
	varList       []string      // Variables to print; empty prints all globals
	objectSlot    int           // Object slot for object-qualified variables
	surfaceSlot   int           // Surface slot for surface-qualified variables
	hotspots      []string      // name=frame hotspot registrations
	balanceBudget time.Duration // Budget per balance pass
	balancePasses int           // Number of balance passes before querying
	insertFrames  []int64       // Frames to insert (applied in order)
	deleteFrames  []int64       // Frames to delete (applied in order)
)

// runCmd materializes frames of a machine and prints variable values.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a machine and query state at arbitrary frames",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := loadPipeline()
		if err != nil {
			return err
		}
		timeline, err := pipeline.Timeline()
		if err != nil {
			return err
		}

		if editsPath != "" {
			if err := LoadEdits(editsPath, timeline); err != nil {
				return err
			}
		}
		for _, f := range insertFrames {
			if err := pipeline.InsertFrame(f); err != nil {
				return err
			}
		}
		for _, f := range deleteFrames {
			if err := pipeline.DeleteFrame(f); err != nil {
				return err
			}
		}

		for _, spec := range hotspots {
			name, frame, err := parseHotspot(spec)
			if err != nil {
				return err
			}
			if err := pipeline.SetHotspot(name, frame); err != nil {
				return err
			}
		}
		for i := 0; i < balancePasses; i++ {
			if err := pipeline.BalanceDistribution(balanceBudget); err != nil {
				return err
			}
		}

		vars, err := pipeline.Variables()
		if err != nil {
			return err
		}
		names := varList
		if len(names) == 0 {
			for _, v := range vars.Group("globals") {
				names = append(names, v.Name())
			}
		}

		for _, frame := range frameList {
			before := timeline.Stats().StepsRun
			for _, name := range names {
				v := replay.NewVariable(name).WithFrame(frame)
				if spec, ok := vars.Spec(name); ok {
					if strings.Contains(spec.Path, "$object") {
						v = v.WithObject(objectSlot)
					}
					if strings.Contains(spec.Path, "$surface") {
						v = v.WithSurface(surfaceSlot)
					}
				}
				value, err := pipeline.Read(v)
				if err != nil {
					return err
				}
				fmt.Printf("frame %6d  %-16s %v\n", frame, name, value)
			}
			logrus.Infof("[run] frame %d cost %d steps", frame, timeline.Stats().StepsRun-before)
		}

		if saveEditsPath != "" {
			if err := SaveEdits(saveEditsPath, timeline); err != nil {
				return err
			}
		}

		stats := timeline.Stats()
		logrus.Infof("[run] %d materializations, %d steps, %d balance passes",
			stats.Materializations, stats.StepsRun, stats.BalancePasses)
		return nil
	},
}

// loadPipeline compiles the selected machine and loads it into a pipeline.
func loadPipeline() (*replay.Pipeline, error) {
	def := machine.Demo()
	if machinePath != "" {
		loaded, err := machine.LoadDef(machinePath)
		if err != nil {
			return nil, err
		}
		def = loaded
	}
	compiled, err := machine.Compile(def)
	if err != nil {
		return nil, err
	}
	logrus.Infof("[run] machine %q with %d slots", def.Name, slotCount)
	return replay.NewLoader().Load(compiled.Program, replay.LoadOptions{
		Timeline: replay.TimelineConfig{Slots: slotCount},
		Vars:     compiled.Vars,
	})
}

// parseHotspot splits a "name=frame" flag value.
func parseHotspot(spec string) (string, int64, error) {
	name, frameStr, ok := strings.Cut(spec, "=")
	if !ok || name == "" {
		return "", 0, fmt.Errorf("hotspot %q: expected name=frame", spec)
	}
	frame, err := strconv.ParseInt(frameStr, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("hotspot %q: bad frame: %w", spec, err)
	}
	return name, frame, nil
}

func init() {
	runCmd.Flags().StringVar(&editsPath, "edits", "", "Edit log YAML applied before querying")
	runCmd.Flags().StringVar(&saveEditsPath, "save-edits", "", "Write the edit log back out after inserts/deletes")
	runCmd.Flags().Int64SliceVar(&frameList, "frames", []int64{0}, "Comma-separated frames to materialize")
	runCmd.Flags().StringSliceVar(&varList, "vars", nil, "Comma-separated variables to print (default: all globals)")
	runCmd.Flags().IntVar(&objectSlot, "object", 0, "Object slot for object-qualified variables")
	runCmd.Flags().IntVar(&surfaceSlot, "surface", 0, "Surface slot for surface-qualified variables")
	runCmd.Flags().StringSliceVar(&hotspots, "hotspot", nil, "Hotspot registrations as name=frame")
	runCmd.Flags().DurationVar(&balanceBudget, "balance-budget", 100*time.Millisecond, "Time budget per balance pass")
	runCmd.Flags().IntVar(&balancePasses, "balance-passes", 0, "Balance passes to run before querying")
	runCmd.Flags().Int64SliceVar(&insertFrames, "insert-frame", nil, "Insert a frame, shifting later edits forward")
	runCmd.Flags().Int64SliceVar(&deleteFrames, "delete-frame", nil, "Delete a frame, shifting later edits backward")

	rootCmd.AddCommand(runCmd)
}
