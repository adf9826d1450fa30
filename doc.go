// github.com/intelliroast/devices contains the MAX31855 thermocouple driver used by the roaster
// controller, together with the bits needed to put several of them on one SPI bus. It uses
// periph for low level access to the hardware and can fall back to embd on boards periph does
// not support. Commands to read a probe and to publish readings over MQTT are in cmd.
package devices
