package zwave

import "fmt"

// NotificationType identifies the kind of callback fired by the driver.
// Numbering follows the driver's own enumeration.
type NotificationType uint8

// Notification types reported by the driver.
const (
	NotificationValueAdded NotificationType = iota
	NotificationValueRemoved
	NotificationValueChanged
	NotificationValueRefreshed
	NotificationGroup
	NotificationNodeNew
	NotificationNodeAdded
	NotificationNodeRemoved
	NotificationNodeProtocolInfo
	NotificationNodeNaming
	NotificationNodeEvent
	NotificationPollingDisabled
	NotificationPollingEnabled
	NotificationSceneEvent
	NotificationCreateButton
	NotificationDeleteButton
	NotificationButtonOn
	NotificationButtonOff
	NotificationDriverReady
	NotificationDriverFailed
	NotificationDriverReset
	NotificationEssentialNodeQueriesComplete
	NotificationNodeQueriesComplete
	NotificationAwakeNodesQueried
	NotificationAllNodesQueriedSomeDead
	NotificationAllNodesQueried
	NotificationGeneric
)

var notificationTypeNames = [...]string{
	NotificationValueAdded:                   "value_added",
	NotificationValueRemoved:                 "value_removed",
	NotificationValueChanged:                 "value_changed",
	NotificationValueRefreshed:               "value_refreshed",
	NotificationGroup:                        "group",
	NotificationNodeNew:                      "node_new",
	NotificationNodeAdded:                    "node_added",
	NotificationNodeRemoved:                  "node_removed",
	NotificationNodeProtocolInfo:             "node_protocol_info",
	NotificationNodeNaming:                   "node_naming",
	NotificationNodeEvent:                    "node_event",
	NotificationPollingDisabled:              "polling_disabled",
	NotificationPollingEnabled:               "polling_enabled",
	NotificationSceneEvent:                   "scene_event",
	NotificationCreateButton:                 "create_button",
	NotificationDeleteButton:                 "delete_button",
	NotificationButtonOn:                     "button_on",
	NotificationButtonOff:                    "button_off",
	NotificationDriverReady:                  "driver_ready",
	NotificationDriverFailed:                 "driver_failed",
	NotificationDriverReset:                  "driver_reset",
	NotificationEssentialNodeQueriesComplete: "essential_node_queries_complete",
	NotificationNodeQueriesComplete:          "node_queries_complete",
	NotificationAwakeNodesQueried:            "awake_nodes_queried",
	NotificationAllNodesQueriedSomeDead:      "all_nodes_queried_some_dead",
	NotificationAllNodesQueried:              "all_nodes_queried",
	NotificationGeneric:                      "notification",
}

// String returns the snake_case name of the notification type.
func (t NotificationType) String() string {
	if int(t) < len(notificationTypeNames) {
		return notificationTypeNames[t]
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// NotificationCode is the payload of a generic notification.
type NotificationCode uint8

// Codes carried by NotificationGeneric.
const (
	CodeMsgComplete NotificationCode = iota
	CodeTimeout
	CodeNoOperation
	CodeAwake
	CodeSleep
	CodeDead
	CodeAlive
)

var notificationCodeNames = [...]string{
	CodeMsgComplete: "msg_complete",
	CodeTimeout:     "timeout",
	CodeNoOperation: "no_operation",
	CodeAwake:       "awake",
	CodeSleep:       "sleep",
	CodeDead:        "dead",
	CodeAlive:       "alive",
}

func (c NotificationCode) String() string {
	if int(c) < len(notificationCodeNames) {
		return notificationCodeNames[c]
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// CommandClass is a Z-Wave command class identifier.
type CommandClass uint8

// Command classes the bridge knows by name.
const (
	ClassNoOperation                     CommandClass = 0x00
	ClassBasic                           CommandClass = 0x20
	ClassControllerReplication           CommandClass = 0x21
	ClassApplicationStatus               CommandClass = 0x22
	ClassSwitchBinary                    CommandClass = 0x25
	ClassSwitchMultilevel                CommandClass = 0x26
	ClassSwitchAll                       CommandClass = 0x27
	ClassSwitchToggleBinary              CommandClass = 0x28
	ClassSwitchToggleMultilevel          CommandClass = 0x29
	ClassSceneActivation                 CommandClass = 0x2B
	ClassSensorBinary                    CommandClass = 0x30
	ClassSensorMultilevel                CommandClass = 0x31
	ClassMeter                           CommandClass = 0x32
	ClassMeterPulse                      CommandClass = 0x35
	ClassThermostatMode                  CommandClass = 0x40
	ClassThermostatOperatingState        CommandClass = 0x42
	ClassThermostatSetpoint              CommandClass = 0x43
	ClassThermostatFanMode               CommandClass = 0x44
	ClassThermostatFanState              CommandClass = 0x45
	ClassClimateControlSchedule          CommandClass = 0x46
	ClassBasicWindowCovering             CommandClass = 0x50
	ClassCRC16Encap                      CommandClass = 0x56
	ClassMultiInstanceChannel            CommandClass = 0x60
	ClassUserCode                        CommandClass = 0x63
	ClassConfiguration                   CommandClass = 0x70
	ClassAlarm                           CommandClass = 0x71
	ClassManufacturerSpecific            CommandClass = 0x72
	ClassPowerlevel                      CommandClass = 0x73
	ClassProtection                      CommandClass = 0x75
	ClassLock                            CommandClass = 0x76
	ClassBattery                         CommandClass = 0x80
	ClassClock                           CommandClass = 0x81
	ClassHail                            CommandClass = 0x82
	ClassWakeUp                          CommandClass = 0x84
	ClassAssociation                     CommandClass = 0x85
	ClassVersion                         CommandClass = 0x86
	ClassIndicator                       CommandClass = 0x87
	ClassProprietary                     CommandClass = 0x88
	ClassLanguage                        CommandClass = 0x89
	ClassMultiInstanceAssociation        CommandClass = 0x8E
	ClassMultiCmd                        CommandClass = 0x8F
	ClassEnergyProduction                CommandClass = 0x90
	ClassAssociationCommandConfiguration CommandClass = 0x9B
	ClassSensorAlarm                     CommandClass = 0x9C
)

var commandClassNames = map[CommandClass]string{
	ClassNoOperation:                     "no_operation",
	ClassBasic:                           "basic",
	ClassControllerReplication:           "controller_replication",
	ClassApplicationStatus:               "application_status",
	ClassSwitchBinary:                    "switch_binary",
	ClassSwitchMultilevel:                "switch_multilevel",
	ClassSwitchAll:                       "switch_all",
	ClassSwitchToggleBinary:              "switch_toggle_binary",
	ClassSwitchToggleMultilevel:          "switch_toggle_multilevel",
	ClassSceneActivation:                 "scene_activation",
	ClassSensorBinary:                    "sensor_binary",
	ClassSensorMultilevel:                "sensor_multilevel",
	ClassMeter:                           "meter",
	ClassMeterPulse:                      "meter_pulse",
	ClassThermostatMode:                  "thermostat_mode",
	ClassThermostatOperatingState:        "thermostat_operating_state",
	ClassThermostatSetpoint:              "thermostat_setpoint",
	ClassThermostatFanMode:               "thermostat_fan_mode",
	ClassThermostatFanState:              "thermostat_fan_state",
	ClassClimateControlSchedule:          "climate_control_schedule",
	ClassBasicWindowCovering:             "basic_window_covering",
	ClassCRC16Encap:                      "crc16_encap",
	ClassMultiInstanceChannel:            "multi_instance_channel",
	ClassUserCode:                        "user_code",
	ClassConfiguration:                   "configuration",
	ClassAlarm:                           "alarm",
	ClassManufacturerSpecific:            "manufacturer_specific",
	ClassPowerlevel:                      "powerlevel",
	ClassProtection:                      "protection",
	ClassLock:                            "lock",
	ClassBattery:                         "battery",
	ClassClock:                           "clock",
	ClassHail:                            "hail",
	ClassWakeUp:                          "wake_up",
	ClassAssociation:                     "association",
	ClassVersion:                         "version",
	ClassIndicator:                       "indicator",
	ClassProprietary:                     "proprietary",
	ClassLanguage:                        "language",
	ClassMultiInstanceAssociation:        "multi_instance_association",
	ClassMultiCmd:                        "multi_cmd",
	ClassEnergyProduction:                "energy_production",
	ClassAssociationCommandConfiguration: "association_command_configuration",
	ClassSensorAlarm:                     "sensor_alarm",
}

// String returns the class name, or its hex id for classes without a name.
func (c CommandClass) String() string {
	if name, ok := commandClassNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(c))
}

// ValueKind is the declared data kind of a value.
type ValueKind string

// Value kinds reported by the driver.
const (
	KindBool     ValueKind = "bool"
	KindByte     ValueKind = "byte"
	KindDecimal  ValueKind = "decimal"
	KindInt      ValueKind = "int"
	KindList     ValueKind = "list"
	KindSchedule ValueKind = "schedule"
	KindShort    ValueKind = "short"
	KindString   ValueKind = "string"
	KindButton   ValueKind = "button"
	KindRaw      ValueKind = "raw"
)

// ValueGenre classifies what a value is for.
type ValueGenre string

// Value genres reported by the driver.
const (
	GenreBasic  ValueGenre = "basic"
	GenreUser   ValueGenre = "user"
	GenreConfig ValueGenre = "config"
	GenreSystem ValueGenre = "system"
)

// Level bounds accepted by Executor.SetLevel.
const (
	MaxLevel       = 99
	LevelLastKnown = 255
)
