package tapclock

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kontrolx1/tapclock/pkg/tapclock/util"
)

// CanonicalConfig provides application-wide access to configuration fields,
// as well as loading/file watching logic for tapclock's configuration file
type CanonicalConfig struct {
	Bindings *bindingMap

	MIDI struct {
		PortName string
	}

	InitialBPM   float64
	QuantumBeats float64

	TapCount    int
	TapResetGap time.Duration

	logger             *zap.SugaredLogger
	notifier           Notifier
	stopWatcherChannel chan bool

	reloadConsumers []chan bool

	userConfig     *viper.Viper
	internalConfig *viper.Viper
}

const (
	userConfigFilepath = "config.yaml"

	userConfigName     = "config"
	internalConfigName = "preferences"

	userConfigPath = "."

	configType = "yaml"

	configKeyBindings     = "bindings"
	configKeyMIDIPort     = "midi_port"
	configKeyInitialBPM   = "initial_bpm"
	configKeyQuantumBeats = "quantum_beats"
	configKeyTapCount     = "tap_count"
	configKeyTapResetGap  = "tap_reset_gap"

	defaultMIDIPort     = ""
	defaultInitialBPM   = 120.0
	defaultQuantumBeats = 4.0
	defaultTapCount     = 4
	defaultTapResetGap  = 2.0
)

// has to be defined as a non-constant because we're using path.Join
var internalConfigPath = path.Join(".", logDirectory)

var defaultBindings = func() *bindingMap {
	emptyMap := newBindingMap()
	emptyMap.set(bindingRoleTap, []string{"shift+deck1_sync"})
	emptyMap.set(bindingRolePlay, []string{"deck1_play"})

	return emptyMap
}()

// NewConfig creates a config instance for the bridge and sets up viper
// instances for tapclock's config files
func NewConfig(logger *zap.SugaredLogger, notifier Notifier) (*CanonicalConfig, error) {
	logger = logger.Named("config")

	cc := &CanonicalConfig{
		logger:             logger,
		notifier:           notifier,
		reloadConsumers:    []chan bool{},
		stopWatcherChannel: make(chan bool),
	}

	// distinguish between the user-provided config (config.yaml) and the internal config (logs/preferences.yaml)
	userConfig := viper.New()
	userConfig.SetConfigName(userConfigName)
	userConfig.SetConfigType(configType)
	userConfig.AddConfigPath(userConfigPath)

	userConfig.SetDefault(configKeyBindings, map[string][]string{})
	userConfig.SetDefault(configKeyMIDIPort, defaultMIDIPort)
	userConfig.SetDefault(configKeyInitialBPM, defaultInitialBPM)
	userConfig.SetDefault(configKeyQuantumBeats, defaultQuantumBeats)
	userConfig.SetDefault(configKeyTapCount, defaultTapCount)
	userConfig.SetDefault(configKeyTapResetGap, defaultTapResetGap)

	internalConfig := viper.New()
	internalConfig.SetConfigName(internalConfigName)
	internalConfig.SetConfigType(configType)
	internalConfig.AddConfigPath(internalConfigPath)

	cc.userConfig = userConfig
	cc.internalConfig = internalConfig

	logger.Debug("Created config instance")

	return cc, nil
}

// Load reads tapclock's config files from disk and tries to parse them
func (cc *CanonicalConfig) Load() error {
	cc.logger.Debugw("Loading config", "path", userConfigFilepath)

	// make sure it exists
	if !util.FileExists(userConfigFilepath) {
		cc.logger.Warnw("Config file not found", "path", userConfigFilepath)
		cc.notifier.Notify("Can't find configuration!",
			fmt.Sprintf("%s must be in the same directory as tapclock. Please re-launch", userConfigFilepath))

		return fmt.Errorf("config file doesn't exist: %s", userConfigFilepath)
	}

	// load the user config
	if err := cc.userConfig.ReadInConfig(); err != nil {
		cc.logger.Warnw("Viper failed to read user config", "error", err)

		// if the error is yaml-format-related, show a sensible error. otherwise, show 'em to the logs
		if strings.Contains(err.Error(), "yaml:") {
			cc.notifier.Notify("Invalid configuration!",
				fmt.Sprintf("Please make sure %s is in a valid YAML format.", userConfigFilepath))
		} else {
			cc.notifier.Notify("Error loading configuration!", "Please check tapclock's logs for more details.")
		}

		return fmt.Errorf("read user config: %w", err)
	}

	// load the internal config - this doesn't have to exist, so it can error
	if err := cc.internalConfig.ReadInConfig(); err != nil {
		cc.logger.Debugw("Viper failed to read internal config", "error", err, "reminder", "this is fine")
	}

	// canonize the configuration with viper's helpers
	if err := cc.populateFromVipers(); err != nil {
		cc.logger.Warnw("Failed to populate config fields", "error", err)
		return fmt.Errorf("populate config fields: %w", err)
	}

	cc.logger.Info("Loaded config successfully")
	cc.logger.Infow("Config values",
		"bindings", cc.Bindings,
		"midiPort", cc.MIDI.PortName,
		"initialBPM", cc.InitialBPM,
		"quantumBeats", cc.QuantumBeats,
		"tapCount", cc.TapCount,
		"tapResetGap", cc.TapResetGap)

	return nil
}

// SubscribeToChanges allows external components to receive updates when the config is reloaded
func (cc *CanonicalConfig) SubscribeToChanges() chan bool {
	c := make(chan bool)
	cc.reloadConsumers = append(cc.reloadConsumers, c)

	return c
}

// WatchConfigFileChanges starts watching for configuration file changes
// and attempts reloading the config when they happen
func (cc *CanonicalConfig) WatchConfigFileChanges() {
	cc.logger.Debugw("Starting to watch user config file for changes", "path", userConfigFilepath)

	const (
		minTimeBetweenReloadAttempts = time.Millisecond * 500
		delayBetweenEventAndReload   = time.Millisecond * 50
	)

	lastAttemptedReload := time.Now()

	// establish watch using viper as opposed to doing it ourselves, though our internal cooldown is still required
	cc.userConfig.WatchConfig()
	cc.userConfig.OnConfigChange(func(event fsnotify.Event) {

		// when we get a write event...
		if event.Op&fsnotify.Write == fsnotify.Write {

			now := time.Now()

			// ... check if it's not a duplicate (many editors will write to a file twice)
			if lastAttemptedReload.Add(minTimeBetweenReloadAttempts).Before(now) {

				// and attempt reload if appropriate
				cc.logger.Debugw("Config file modified, attempting reload", "event", event)

				// wait a bit to let the editor actually flush the new file contents to disk
				<-time.After(delayBetweenEventAndReload)

				if err := cc.Load(); err != nil {
					cc.logger.Warnw("Failed to reload config file", "error", err)
				} else {
					cc.logger.Info("Reloaded config successfully")
					cc.notifier.Notify("Configuration reloaded!", "Your changes have been applied.")

					cc.onConfigReloaded()
				}

				// don't forget to update the time
				lastAttemptedReload = now
			}
		}
	})

	// wait till they stop us
	<-cc.stopWatcherChannel
	cc.logger.Debug("Stopping user config file watcher")
	cc.userConfig.OnConfigChange(nil)
}

// StopWatchingConfigFile signals our filesystem watcher to stop
func (cc *CanonicalConfig) StopWatchingConfigFile() {
	cc.stopWatcherChannel <- true
}

func (cc *CanonicalConfig) populateFromVipers() error {

	// merge the bindings from the user and internal configs
	cc.Bindings = bindingMapFromConfigs(
		cc.userConfig.GetStringMapStringSlice(configKeyBindings),
		cc.internalConfig.GetStringMapStringSlice(configKeyBindings),
	)

	// nothing bound at all means the controls would be dead, so fall back
	// to the built-in layout
	if cc.Bindings.empty() {
		cc.logger.Warnw("No bindings specified, using default layout",
			"key", configKeyBindings,
			"defaultValue", defaultBindings)

		cc.Bindings = defaultBindings
	}

	cc.Bindings.validate(cc.logger)

	// get the rest of the config fields - viper saves us a lot of effort here
	cc.MIDI.PortName = cc.userConfig.GetString(configKeyMIDIPort)

	cc.InitialBPM = cc.userConfig.GetFloat64(configKeyInitialBPM)
	if cc.InitialBPM <= 0 {
		cc.logger.Warnw("Invalid initial BPM specified, using default value",
			"key", configKeyInitialBPM,
			"invalidValue", cc.InitialBPM,
			"defaultValue", defaultInitialBPM)

		cc.InitialBPM = defaultInitialBPM
	}

	cc.QuantumBeats = cc.userConfig.GetFloat64(configKeyQuantumBeats)
	if cc.QuantumBeats <= 0 {
		cc.logger.Warnw("Invalid quantum specified, using default value",
			"key", configKeyQuantumBeats,
			"invalidValue", cc.QuantumBeats,
			"defaultValue", defaultQuantumBeats)

		cc.QuantumBeats = defaultQuantumBeats
	}

	cc.TapCount = cc.userConfig.GetInt(configKeyTapCount)
	if cc.TapCount < 2 {
		cc.logger.Warnw("Invalid tap count specified, using default value",
			"key", configKeyTapCount,
			"invalidValue", cc.TapCount,
			"defaultValue", defaultTapCount)

		cc.TapCount = defaultTapCount
	}

	tapResetGap := cc.userConfig.GetFloat64(configKeyTapResetGap)
	if tapResetGap <= 0 {
		cc.logger.Warnw("Invalid tap reset gap specified, using default value",
			"key", configKeyTapResetGap,
			"invalidValue", tapResetGap,
			"defaultValue", defaultTapResetGap)

		tapResetGap = defaultTapResetGap
	}

	cc.TapResetGap = time.Duration(tapResetGap * float64(time.Second))

	cc.logger.Debug("Populated config fields from vipers")

	return nil
}

func (cc *CanonicalConfig) onConfigReloaded() {
	cc.logger.Debug("Notifying consumers about configuration reload")

	for _, consumer := range cc.reloadConsumers {
		consumer <- true
	}
}
